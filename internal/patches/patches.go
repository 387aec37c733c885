// Package patches turns format-patch series into per-commit change statistics.
package patches

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gitleaks/go-gitdiff/gitdiff"

	"github.com/rohankatakam/prtimeline/internal/models"
)

var (
	// mbox separator written by git format-patch
	headerPattern = regexp.MustCompile(`(?m)^From (\S+) Mon Sep 17 00:00:00 2001$`)
	separator     = regexp.MustCompile(`(?m)^---$`)

	filesPattern     = regexp.MustCompile(`(?m)^ (\d+) files? changed`)
	insertionPattern = regexp.MustCompile(`(?m)^ \d+ files? changed.*?(\d+) insertions?\(\+\)`)
	deletionPattern  = regexp.MustCompile(`(?m)^ \d+ files? changed.*?(\d+) deletions?\(-\)`)
)

// Commit is one patch of a series
type Commit struct {
	SHA  string
	Text string
}

// Split cuts a series into its commits. A header line that appears before the
// current commit's "---" separator belongs to that commit's message.
func Split(series string) []Commit {
	var commits []Commit
	var starts []int
	for _, m := range headerPattern.FindAllStringSubmatchIndex(series, -1) {
		if n := len(starts); n > 0 && !separator.MatchString(series[starts[n-1]:m[0]]) {
			continue
		}
		commits = append(commits, Commit{SHA: series[m[2]:m[3]]})
		starts = append(starts, m[0])
	}

	out := commits[:0]
	for i := range commits {
		end := len(series)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		commits[i].Text = series[starts[i]:end]
		if separator.MatchString(commits[i].Text) {
			out = append(out, commits[i])
		}
	}
	return out
}

// Stat computes the change statistics of one commit. Line counts come from the
// diff itself; the diffstat summary is used when the diff cannot be parsed.
func Stat(pullNumber int, c Commit) models.PatchChange {
	change := models.PatchChange{PullNumber: pullNumber, SHA: c.SHA}

	files, _, err := gitdiff.Parse(strings.NewReader(c.Text))
	if err != nil || len(files) == 0 {
		change.ChangedFiles = summaryValue(filesPattern, c.Text)
		change.AddedLines = summaryValue(insertionPattern, c.Text)
		change.DeletedLines = summaryValue(deletionPattern, c.Text)
		return change
	}

	change.ChangedFiles = len(files)
	for _, f := range files {
		for _, frag := range f.TextFragments {
			change.AddedLines += int(frag.LinesAdded)
			change.DeletedLines += int(frag.LinesDeleted)
		}
	}
	return change
}

func summaryValue(pattern *regexp.Regexp, text string) int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Changes returns the statistics of every commit of every pull, ordered by pull
// number and SHA.
func Changes(patches map[int]string) []models.PatchChange {
	var out []models.PatchChange
	for number, series := range patches {
		for _, c := range Split(series) {
			out = append(out, Stat(number, c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PullNumber != out[j].PullNumber {
			return out[i].PullNumber < out[j].PullNumber
		}
		return out[i].SHA < out[j].SHA
	})
	return out
}
