// Package namegen names the jobs submitted without a name.
package namegen

import (
	"regexp"
	"strings"
	"sync"

	vendor "github.com/anandvarma/namegen"
)

var (
	mu  sync.Mutex
	gen = vendor.New()

	separatorRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// JobName returns a random name of lowercase words joined by dashes. It is
// usable as a SLURM job name and as part of a file name.
func JobName() string {
	mu.Lock()
	raw := gen.Get()
	mu.Unlock()

	name := strings.Trim(separatorRegex.ReplaceAllString(strings.ToLower(raw), "-"), "-")
	if name == "" {
		return "job"
	}
	return name
}
