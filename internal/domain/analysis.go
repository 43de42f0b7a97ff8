package domain

import "time"

// Status is derived from probe outcomes, never set by users.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusRegistered Status = "registered"
	StatusPending    Status = "pending"
	StatusExpired    Status = "expired"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusRegistered, StatusPending, StatusExpired, StatusError:
		return true
	}
	return false
}

// DomainAnalysis is the scoring result for a single domain. A fresh value is
// built on every run and replaces the stored one.
type DomainAnalysis struct {
	Domain           string     `json:"domain"`
	Status           Status     `json:"status"`
	TrafficScore     int        `json:"traffic_score"`
	EstimatedTraffic int        `json:"estimated_traffic"`
	ArchiveSnapshots int        `json:"archive_snapshots"`
	ArchiveRecent    int        `json:"archive_recent"`
	LastSeen         *time.Time `json:"last_seen"`
	IndexedPages     int        `json:"indexed_pages"`
	SocialMentions   int        `json:"social_mentions"`
	WebPresence      int        `json:"web_presence"`
	MailScore        float64    `json:"mail_score"`
	HasRedirect      bool       `json:"has_redirect"`
	RedirectURL      *string    `json:"redirect_url"`
	IsParked         bool       `json:"is_parked"`
	HasWebsite       bool       `json:"has_website"`
	HasNameservers   bool       `json:"has_nameservers"`
	LastChecked      time.Time  `json:"last_checked"`
}

// FailedAnalysis is the all-zero record returned when scoring could not run.
func FailedAnalysis(name string, at time.Time) DomainAnalysis {
	return DomainAnalysis{
		Domain:      name,
		Status:      StatusError,
		LastChecked: at,
	}
}

// ArchiveSignal summarizes web-archive captures.
type ArchiveSignal struct {
	OK        bool       `json:"ok"`
	Snapshots int        `json:"snapshots"`
	Recent    int        `json:"recent"`
	LastSeen  *time.Time `json:"last_seen"`
}

// DNSSignal reports registration hints from DNS.
type DNSSignal struct {
	OK             bool `json:"ok"`
	HasNameservers bool `json:"has_nameservers"`
	HasWebsite     bool `json:"has_website"`
}

// IndexSignal is the estimated count of search-indexed pages.
type IndexSignal struct {
	OK    bool `json:"ok"`
	Pages int  `json:"pages"`
}

// MailSignal weighs MX/SPF/DMARC configuration.
type MailSignal struct {
	OK    bool    `json:"ok"`
	MX    int     `json:"mx"`
	SPF   int     `json:"spf"`
	DMARC int     `json:"dmarc"`
	Score float64 `json:"score"`
}

// WebSignal carries redirect and parking detection for the domain root.
type WebSignal struct {
	OK          bool    `json:"ok"`
	HasRedirect bool    `json:"has_redirect"`
	RedirectURL *string `json:"redirect_url"`
	IsParked    bool    `json:"is_parked"`
}

// SocialSignal holds mention counts per platform.
type SocialSignal struct {
	OK          bool           `json:"ok"`
	PerPlatform map[string]int `json:"per_platform"`
	Total       int            `json:"total"`
}

// Signals is the gathered probe output for one domain. Each probe writes its
// own field only.
type Signals struct {
	Domain    string
	CheckedAt time.Time

	Archive ArchiveSignal
	DNS     DNSSignal
	Index   IndexSignal
	Mail    MailSignal
	Web     WebSignal
	Social  SocialSignal
}

// Stage names a step of a single analysis run.
type Stage string

const (
	StageStart      Stage = "start"
	StageProbing    Stage = "probing"
	StageScoring    Stage = "scoring"
	StageEstimating Stage = "estimating"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Percent returns the fixed checkpoint for the stage.
func (s Stage) Percent() int {
	switch s {
	case StageStart:
		return 0
	case StageProbing:
		return 25
	case StageScoring:
		return 50
	case StageEstimating:
		return 75
	default:
		return 100
	}
}

// ProgressEvent is emitted on every stage transition.
type ProgressEvent struct {
	Domain  string `json:"domain"`
	Step    Stage  `json:"step"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// ProgressFunc receives progress events. A nil func is allowed wherever one is accepted.
type ProgressFunc func(ProgressEvent)
