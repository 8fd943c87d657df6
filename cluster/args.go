package cluster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gammadia/batchd/gres"
	"github.com/samber/lo"
)

// Option is a command line option of the submission tool, e.g. --output/-o.
type Option struct {
	Long  string
	Short string
}

func (o Option) String() string {
	if o.Short == "" {
		return "--" + o.Long
	}
	return fmt.Sprintf("--%s/-%s", o.Long, o.Short)
}

var (
	OptionOutput     = Option{"output", "o"}
	OptionError      = Option{"error", "e"}
	OptionChdir      = Option{"chdir", "D"}
	OptionWorkdir    = Option{"workdir", ""}
	OptionArray      = Option{"array", "a"}
	OptionDependency = Option{"dependency", "d"}
	OptionPartition  = Option{"partition", "p"}
	OptionCPUs       = Option{"cpus-per-task", "c"}
	OptionGres       = Option{"gres", ""}
)

// controlled options are set by the cluster itself: letting callers set them
// would break the collection of job results.
var controlled = []Option{
	OptionOutput,
	OptionError,
	OptionChdir,
	OptionWorkdir,
	OptionArray,
	OptionDependency,
}

// sbatch options which take their value as the next argument. Their value is
// never read as an option, so "--comment -array" does not set an array.
var (
	valueLongOptions = []string{
		"account", "acctg-freq", "array", "batch", "bb", "bbf", "begin", "chdir",
		"cluster-constraint", "clusters", "comment", "constraint", "container",
		"core-spec", "cores-per-socket", "cpu-freq", "cpus-per-gpu", "cpus-per-task",
		"deadline", "delay-boot", "dependency", "distribution", "error", "exclude",
		"export", "export-file", "extra-node-info", "gid", "gpu-bind", "gpu-freq",
		"gpus", "gpus-per-node", "gpus-per-socket", "gpus-per-task", "gres",
		"gres-flags", "input", "job-name", "licenses", "mail-type", "mail-user",
		"mcs-label", "mem", "mem-bind", "mem-per-cpu", "mem-per-gpu", "mincpus",
		"network", "nodefile", "nodelist", "nodes", "ntasks", "ntasks-per-core",
		"ntasks-per-gpu", "ntasks-per-node", "ntasks-per-socket", "open-mode",
		"output", "partition", "power", "prefer", "priority", "profile", "qos",
		"reservation", "signal", "sockets-per-node", "switches", "thread-spec",
		"threads-per-core", "time", "time-min", "tmp", "uid", "wckey", "workdir",
		"wrap",
	}
	valueShortOptions = "AabBcCdDeFGiJLmMnNopqStwx"
)

// takesValue reports whether arg is a bare option whose value is the next
// argument. Unknown options are assumed to take none.
func takesValue(arg string) bool {
	if long, ok := strings.CutPrefix(arg, "--"); ok {
		return lo.Contains(valueLongOptions, long)
	}
	return len(arg) == 2 && arg[0] == '-' && strings.ContainsRune(valueShortOptions, rune(arg[1]))
}

type occurrence struct {
	arg   string
	value string
}

// lookup returns every occurrence of the option in args, accepting the forms
// --long=value, --long value, -svalue and -s value.
func (o Option) lookup(args []string) []occurrence {
	var found []occurrence
	for i := 0; i < len(args); i++ {
		arg := args[i]

		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}

		switch {
		case arg == "--"+o.Long:
			found = append(found, occurrence{arg, next()})
		case strings.HasPrefix(arg, "--"+o.Long+"="):
			found = append(found, occurrence{arg, strings.TrimPrefix(arg, "--"+o.Long+"=")})
		case o.Short != "" && arg == "-"+o.Short:
			found = append(found, occurrence{arg, next()})
		case o.Short != "" && !strings.HasPrefix(arg, "--") && strings.HasPrefix(arg, "-"+o.Short):
			found = append(found, occurrence{arg, strings.TrimPrefix(arg, "-"+o.Short)})
		case takesValue(arg):
			i++
		}
	}
	return found
}

// CheckArgs validates the raw submission arguments of a job. When queues is
// not empty, any explicit partition must be one of them.
func CheckArgs(args []string, queues []string) error {
	for _, option := range controlled {
		if found := option.lookup(args); len(found) > 0 {
			return &ValidationError{
				Arg:    found[0].arg,
				Reason: fmt.Sprintf("%s is managed by the cluster and cannot be set on a job", option),
			}
		}
	}

	if len(queues) > 0 {
		for _, found := range OptionPartition.lookup(args) {
			for _, queue := range strings.Split(found.value, ",") {
				if !lo.Contains(queues, queue) {
					return &ValidationError{
						Arg:    found.arg,
						Reason: fmt.Sprintf("unknown queue '%s', expected one of: %s", queue, strings.Join(queues, ", ")),
					}
				}
			}
		}
	}

	for _, found := range OptionGres.lookup(args) {
		if _, err := gres.ParseAll(found.value); err != nil {
			return &ValidationError{Arg: found.arg, Reason: err.Error()}
		}
	}

	if _, err := CPUsPerTask(args); err != nil {
		return err
	}

	return nil
}

// HasQueueArg reports whether the caller chose a partition explicitly.
func HasQueueArg(args []string) bool {
	return len(OptionPartition.lookup(args)) > 0
}

// CPUsPerTask returns the CPU count requested in args, 0 if none. The last
// occurrence wins, as with sbatch.
func CPUsPerTask(args []string) (int, error) {
	found := OptionCPUs.lookup(args)
	if len(found) == 0 {
		return 0, nil
	}

	last := found[len(found)-1]
	cpus, err := strconv.Atoi(last.value)
	if err != nil || cpus < 1 {
		return 0, &ValidationError{Arg: last.arg, Reason: "CPU count must be a positive integer"}
	}
	return cpus, nil
}

// Gres returns every generic resource requested in args.
func Gres(args []string) ([]gres.Gres, error) {
	var all []gres.Gres
	for _, found := range OptionGres.lookup(args) {
		parsed, err := gres.ParseAll(found.value)
		if err != nil {
			return nil, &ValidationError{Arg: found.arg, Reason: err.Error()}
		}
		all = append(all, parsed...)
	}
	return all, nil
}
