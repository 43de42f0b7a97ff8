// Package scoring turns probe signals into a bounded traffic score and an
// estimated monthly visit count.
package scoring

import (
	"fmt"
	"math"

	"DomainScore/internal/domain"
	"DomainScore/internal/probe"
)

const (
	SchemeArchive       = "archive"
	SchemeComprehensive = "comprehensive"

	MaxScore = 100
)

// Scheme combines signals into a score in [0, MaxScore].
type Scheme interface {
	Name() string
	// Probes lists the probes whose signals the scheme reads.
	Probes() []probe.Kind
	Score(signals domain.Signals) int
}

// Components is the per-signal contribution before summing, each already
// clamped to its cap.
type Components map[string]float64

// SchemeByName selects a scheme; an empty name picks comprehensive.
func SchemeByName(name string) (Scheme, error) {
	switch name {
	case "", SchemeComprehensive:
		return Comprehensive{}, nil
	case SchemeArchive:
		return Archive{}, nil
	}
	return nil, fmt.Errorf("unknown scoring scheme %q", name)
}

// Archive scores mostly on web-archive history.
type Archive struct{}

func (Archive) Name() string { return SchemeArchive }

func (Archive) Probes() []probe.Kind {
	return []probe.Kind{probe.KindArchive, probe.KindDNS}
}

func (a Archive) Score(s domain.Signals) int { return total(a.Components(s)) }

// Components: recent captures (cap 40), history (40), live website (10),
// recency of the last capture (10).
func (Archive) Components(s domain.Signals) Components {
	c := Components{
		"recent":  capped(float64(s.Archive.Recent)*4, 40),
		"history": capped(float64(s.Archive.Snapshots)/10, 40),
		"website": 0,
		"recency": 0,
	}
	if s.DNS.HasWebsite {
		c["website"] = 10
	}
	if last := s.Archive.LastSeen; last != nil && !s.CheckedAt.IsZero() {
		switch {
		case !last.Before(s.CheckedAt.AddDate(0, -1, 0)):
			c["recency"] = 10
		case !last.Before(s.CheckedAt.AddDate(0, -3, 0)):
			c["recency"] = 5
		case !last.Before(s.CheckedAt.AddDate(0, -6, 0)):
			c["recency"] = 2
		}
	}
	return c
}

// Comprehensive weighs every probe.
type Comprehensive struct{}

func (Comprehensive) Name() string { return SchemeComprehensive }

func (Comprehensive) Probes() []probe.Kind {
	return []probe.Kind{probe.KindArchive, probe.KindDNS, probe.KindIndex, probe.KindMail, probe.KindWeb, probe.KindSocial}
}

func (c Comprehensive) Score(s domain.Signals) int { return total(c.Components(s)) }

// Components: archive (15 + 10), index (30), mail (25), redirect (10), parked (10).
func (Comprehensive) Components(s domain.Signals) Components {
	c := Components{
		"archive":        capped(float64(s.Archive.Snapshots)/20, 15),
		"archive_recent": capped(float64(s.Archive.Recent)/2, 10),
		"index":          capped(float64(s.Index.Pages)/10, 30),
		"mail":           capped(s.Mail.Score*4, 25),
		"redirect":       0,
		"parked":         0,
	}
	if s.Web.HasRedirect {
		c["redirect"] = 10
	}
	if s.Web.IsParked {
		c["parked"] = 10
	}
	return c
}

func capped(v, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Min(v, limit)
}

func total(c Components) int {
	var sum float64
	for _, v := range c {
		sum += capped(v, math.MaxFloat64)
	}
	return Clamp(int(math.Round(sum)))
}

// Clamp bounds a score to [0, MaxScore].
func Clamp(score int) int {
	return max(0, min(MaxScore, score))
}
