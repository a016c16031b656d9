package logs

import (
	"regexp"
	"strconv"
	"strings"
)

var jsonJobPattern = regexp.MustCompile(`"job_id":\s*"?(\d+)"?`)

// JobFilter tracks console entries across calls so continuation lines
// stay attached to their header line when output arrives in chunks.
type JobFilter struct {
	jobID    string
	matching bool
}

// NewJobFilter keeps only log entries tagged with jobID.
func NewJobFilter(jobID int64) *JobFilter {
	return &JobFilter{jobID: strconv.FormatInt(jobID, 10)}
}

// Apply returns the lines belonging to the filter's job.
func (f *JobFilter) Apply(lines []string) []string {
	var out []string
	for _, line := range lines {
		if isContinuation(line) {
			if f.matching {
				out = append(out, line)
			}
			continue
		}
		f.matching = f.matches(line)
		if f.matching {
			out = append(out, line)
		}
	}
	return out
}

func (f *JobFilter) matches(line string) bool {
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		m := jsonJobPattern.FindStringSubmatch(line)
		return m != nil && m[1] == f.jobID
	}
	idx := strings.Index(line, "Job #"+f.jobID)
	if idx < 0 {
		return false
	}
	rest := line[idx+len("Job #")+len(f.jobID):]
	return rest == "" || rest[0] == ' '
}

// FilterJob is a one-shot JobFilter.
func FilterJob(lines []string, jobID int64) []string {
	return NewJobFilter(jobID).Apply(lines)
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, "    - ")
}
