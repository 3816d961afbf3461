package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/biy/internal/models"
	"github.com/dustin/go-humanize"
)

var _ list.Item = jobItem{}

// jobItem wraps [models.Job] to implement [list.Item].
type jobItem struct {
	job *models.Job
}

func (i jobItem) FilterValue() string { return i.job.Filename() }
func (i jobItem) Title() string {
	return fmt.Sprintf("#%d %s", i.job.Sequence(), i.job.Filename())
}

func (i jobItem) Description() string {
	state := i.job.State()
	desc := fmt.Sprintf("%s • %s • %s", state, i.job.Source(), humanize.Bytes(uint64(i.job.SizeBytes())))
	if d := i.job.Duration(); d > 0 {
		desc = fmt.Sprintf("%s • %s", desc, d.Round(time.Millisecond))
	}
	if msg := i.job.ErrorMessage(); msg != "" {
		desc = fmt.Sprintf("%s • %s", desc, msg)
	}
	return styles.state(desc, state == models.JobFailed, state == models.JobComplete)
}

func jobItems(jobs []*models.Job) []list.Item {
	items := make([]list.Item, len(jobs))
	for i, job := range jobs {
		items[i] = jobItem{job: job}
	}
	return items
}
