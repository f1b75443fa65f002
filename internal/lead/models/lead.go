package models

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Source tags where a record was read from. It is assigned at read time and
// never persisted with the record.
type Source string

const (
	SourceLocal  Source = "local"
	SourceOnline Source = "online"
)

// ExitIntentCompany marks leads captured by the exit-intent popup rather than
// the full wizard.
const ExitIntentCompany = "Exit Intent Signup"

const remoteIDPrefix = "sheet-"

// DateLayout is the fr-FR short date the landing page has always stored.
const DateLayout = "02/01/2006"

// Fields are the raw answers collected by either capture path.
type Fields struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// LeadRecord is one captured lead. Records are never updated after creation;
// local ones can only be deleted.
type LeadRecord struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Source  Source `json:"-"`
}

// Deletable reports whether the record may be removed from this system.
func (r LeadRecord) Deletable() bool {
	return r.Source == SourceLocal
}

// WithSource returns a copy tagged with src.
func (r LeadRecord) WithSource(src Source) LeadRecord {
	r.Source = src
	return r
}

// WebhookPayload is the fixed body accepted by the remote ingestion endpoint.
type WebhookPayload struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// Payload projects the record onto the ingestion schema.
func (r LeadRecord) Payload() WebhookPayload {
	return WebhookPayload{
		Date:    r.Date,
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Company: r.Company,
	}
}

// RemoteRecordID is the positional id of the index-th data row of the export.
// It is not stable across fetches if upstream rows move.
func RemoteRecordID(index int) string {
	return fmt.Sprintf("%s%d", remoteIDPrefix, index)
}

// IsRemoteID reports whether id was assigned to an export row.
func IsRemoteID(id string) bool {
	return strings.HasPrefix(id, remoteIDPrefix)
}

// IDGenerator hands out millisecond-timestamp ids, bumping by one when two
// records land in the same millisecond so ids stay unique in-process.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *IDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}

// NewLocalRecord builds a record for a successful submission. Answers are
// stored as typed; only validation trims.
func NewLocalRecord(id string, now time.Time, loc *time.Location, f Fields) LeadRecord {
	if loc == nil {
		loc = time.UTC
	}
	return LeadRecord{
		ID:      id,
		Date:    now.In(loc).Format(DateLayout),
		Name:    f.Name,
		Email:   f.Email,
		Phone:   f.Phone,
		Company: f.Company,
		Source:  SourceLocal,
	}
}
