package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/kwv/coordenv/coordenv"
)

// ErrEmptyQuery is returned when a payload holds no queries.
var ErrEmptyQuery = errors.New("no site queries in payload")

// SiteQuery is one site as received over MQTT or HTTP.
type SiteQuery struct {
	ID        string       `json:"id,omitempty"`
	Central   [3]float64   `json:"central"`
	Neighbors [][3]float64 `json:"neighbors"`
	Symbols   []string     `json:"symbols,omitempty"`
	Group     string       `json:"group,omitempty"`
}

// Site converts the query into the coordenv input type.
func (q SiteQuery) Site() coordenv.Site {
	neighbors := make([]r3.Vector, len(q.Neighbors))
	for i, n := range q.Neighbors {
		neighbors[i] = r3.Vector{X: n[0], Y: n[1], Z: n[2]}
	}
	return coordenv.Site{
		ID:        q.ID,
		Central:   r3.Vector{X: q.Central[0], Y: q.Central[1], Z: q.Central[2]},
		Neighbors: neighbors,
		Symbols:   q.Symbols,
		Group:     q.Group,
	}
}

// DecodeQueries parses a single SiteQuery object or an array of them.
// Queries without an id get a random one.
func DecodeQueries(payload []byte) ([]SiteQuery, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrEmptyQuery
	}

	var queries []SiteQuery
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &queries); err != nil {
			return nil, fmt.Errorf("decoding site queries: %w", err)
		}
	} else {
		var q SiteQuery
		if err := json.Unmarshal(trimmed, &q); err != nil {
			return nil, fmt.Errorf("decoding site query: %w", err)
		}
		queries = []SiteQuery{q}
	}
	if len(queries) == 0 {
		return nil, ErrEmptyQuery
	}

	for i := range queries {
		if queries[i].ID == "" {
			queries[i].ID = uuid.NewString()
		}
	}
	return queries, nil
}

// Match is one ranked alignment on the wire.
type Match struct {
	Symbol        string             `json:"symbol"`
	CSM           float64            `json:"csm"`
	Permutation   []int              `json:"permutation"`
	Algorithm     string             `json:"algorithm"`
	Rotation      [3][3]float64      `json:"rotation"`
	Scale         float64            `json:"scale"`
	Translation   [3]float64         `json:"translation"`
	OtherMeasures map[string]float64 `json:"otherMeasures,omitempty"`
}

// Environment is the ranking of one neighbor subset.
type Environment struct {
	Indices []int   `json:"indices"`
	Source  string  `json:"source"`
	Depth   int     `json:"depth"`
	Ranking []Match `json:"ranking"`
}

// SiteResult is published for every site of a batch.
type SiteResult struct {
	ID             string        `json:"id"`
	Representative string        `json:"representative,omitempty"`
	Skipped        bool          `json:"skipped,omitempty"`
	Error          string        `json:"error,omitempty"`
	DurationMs     float64       `json:"durationMs"`
	Environments   []Environment `json:"environments,omitempty"`
	Timestamp      int64         `json:"timestamp"`
}

// NewSiteResult converts a batch report. Duration is reported in milliseconds.
func NewSiteResult(report coordenv.SiteReport) SiteResult {
	res := SiteResult{
		ID:             report.ID,
		Representative: report.Representative,
		Skipped:        report.Skipped,
		DurationMs:     float64(report.Duration) / float64(time.Millisecond),
		Timestamp:      time.Now().Unix(),
	}
	if report.Err != nil {
		res.Error = report.Err.Error()
	}
	for _, env := range report.Environments {
		e := Environment{Indices: env.Indices, Source: env.Source, Depth: env.Depth}
		for _, r := range env.Ranking {
			e.Ranking = append(e.Ranking, newMatch(r))
		}
		res.Environments = append(res.Environments, e)
	}
	return res
}

func newMatch(r coordenv.AlignmentResult) Match {
	m := Match{
		Symbol:      r.Symbol,
		CSM:         r.CSM,
		Permutation: r.Permutation,
		Algorithm:   string(r.Algorithm),
		Rotation:    r.Rotation,
		Scale:       r.Scale,
		Translation: [3]float64{r.Translation.X, r.Translation.Y, r.Translation.Z},
	}
	if len(r.OtherMeasures) > 0 {
		m.OtherMeasures = make(map[string]float64, len(r.OtherMeasures))
		for view, measure := range r.OtherMeasures {
			m.OtherMeasures[string(view)] = measure.CSM
		}
	}
	return m
}
