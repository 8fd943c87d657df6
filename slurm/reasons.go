package slurm

// Reason codes reported by squeue (%r) for pending jobs.
// See https://slurm.schedmd.com/job_reason_codes.html
type Reason string

const (
	ReasonAssociationJobLimit      Reason = "AssociationJobLimit"
	ReasonAssociationResourceLimit Reason = "AssociationResourceLimit"
	ReasonAssociationTimeLimit     Reason = "AssociationTimeLimit"
	ReasonBadConstraints           Reason = "BadConstraints"
	ReasonBeginTime                Reason = "BeginTime"
	ReasonCleaning                 Reason = "Cleaning"
	ReasonDependency               Reason = "Dependency"
	ReasonDependencyNeverSatisfied Reason = "DependencyNeverSatisfied"
	ReasonFrontEndDown             Reason = "FrontEndDown"
	ReasonInactiveLimit            Reason = "InactiveLimit"
	ReasonInvalidAccount           Reason = "InvalidAccount"
	ReasonInvalidQOS               Reason = "InvalidQOS"
	ReasonJobArrayTaskLimit        Reason = "JobArrayTaskLimit"
	ReasonJobHeldAdmin             Reason = "JobHeldAdmin"
	ReasonJobHeldUser              Reason = "JobHeldUser"
	ReasonJobLaunchFailure         Reason = "JobLaunchFailure"
	ReasonLicenses                 Reason = "Licenses"
	ReasonNodeDown                 Reason = "NodeDown"
	ReasonNonZeroExitCode          Reason = "NonZeroExitCode"
	ReasonNone                     Reason = "None"
	ReasonPartitionDown            Reason = "PartitionDown"
	ReasonPartitionInactive        Reason = "PartitionInactive"
	ReasonPartitionNodeLimit       Reason = "PartitionNodeLimit"
	ReasonPartitionTimeLimit       Reason = "PartitionTimeLimit"
	ReasonPriority                 Reason = "Priority"
	ReasonProlog                   Reason = "Prolog"
	ReasonQOSJobLimit              Reason = "QOSJobLimit"
	ReasonQOSResourceLimit         Reason = "QOSResourceLimit"
	ReasonQOSTimeLimit             Reason = "QOSTimeLimit"
	ReasonReqNodeNotAvail          Reason = "ReqNodeNotAvail"
	ReasonReservation              Reason = "Reservation"
	ReasonResources                Reason = "Resources"
	ReasonSystemFailure            Reason = "SystemFailure"
	ReasonTimeLimit                Reason = "TimeLimit"
)

var reasonDescriptions = map[Reason]string{
	ReasonAssociationJobLimit:      "The job's association has reached its maximum job count",
	ReasonAssociationResourceLimit: "The job's association has reached some resource limit",
	ReasonAssociationTimeLimit:     "The job's association has reached its time limit",
	ReasonBadConstraints:           "The job's constraints can not be satisfied",
	ReasonBeginTime:                "The job's earliest start time has not yet been reached",
	ReasonCleaning:                 "The job is being requeued and still cleaning up from its previous execution",
	ReasonDependency:               "This job is waiting for a dependent job to complete",
	ReasonDependencyNeverSatisfied: "This job has a dependency that will never be satisfied",
	ReasonFrontEndDown:             "No front end node is available to execute this job",
	ReasonInactiveLimit:            "The job reached the system inactive limit",
	ReasonInvalidAccount:           "The job's account is invalid",
	ReasonInvalidQOS:               "The job's QOS is invalid",
	ReasonJobArrayTaskLimit:        "The job array has reached its limit of simultaneously running tasks",
	ReasonJobHeldAdmin:             "The job is held by a system administrator",
	ReasonJobHeldUser:              "The job is held by the user",
	ReasonJobLaunchFailure:         "The job could not be launched",
	ReasonLicenses:                 "The job is waiting for a license",
	ReasonNodeDown:                 "A node required by the job is down",
	ReasonNonZeroExitCode:          "The job terminated with a non-zero exit code",
	ReasonPartitionDown:            "The partition required by this job is in a DOWN state",
	ReasonPartitionInactive:        "The partition required by this job is in an Inactive state and not able to start jobs",
	ReasonPartitionNodeLimit:       "The number of nodes required by this job is outside of its partition's current limits",
	ReasonPartitionTimeLimit:       "The job's time limit exceeds its partition's current time limit",
	ReasonPriority:                 "One or more higher priority jobs exist for this partition or advanced reservation",
	ReasonProlog:                   "The job's PrologSlurmctld program is still running",
	ReasonQOSJobLimit:              "The job's QOS has reached its maximum job count",
	ReasonQOSResourceLimit:         "The job's QOS has reached some resource limit",
	ReasonQOSTimeLimit:             "The job's QOS has reached its time limit",
	ReasonReqNodeNotAvail:          "Some node specifically required by the job is not currently available",
	ReasonReservation:              "The job is waiting for its advanced reservation to become available",
	ReasonResources:                "The job is waiting for resources to become available",
	ReasonSystemFailure:            "Failure of the Slurm system, a file system, the network, etc",
	ReasonTimeLimit:                "The job exhausted its time limit",
}

// Description returns a human readable explanation of the reason, or the raw
// code when it is not documented.
func (r Reason) Description() string {
	if description, ok := reasonDescriptions[r]; ok {
		return description
	}
	return string(r)
}
