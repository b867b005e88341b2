package filters

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultDemographic is preferred over the first listed demographic when
// options arrive and no demographic is selected yet.
const DefaultDemographic = "Overall"

// preferredTopic is matched case-insensitively against topic names when
// picking the initial topic.
const preferredTopic = "stroke"

// Selection is the (topic, year, demographic, indicator) tuple chosen by the
// user. The zero value is the empty selection; Year 0 means unset.
type Selection struct {
	Topic       string `json:"topic"`
	Year        int    `json:"year"`
	Demographic string `json:"demographic"`
	Indicator   string `json:"indicator"`
}

// Options is the set of valid choices for one topic, as reported by the
// backend. Order is display order; the first element of each list is the
// default.
type Options struct {
	Topics       []string `json:"topics"`
	Years        []int    `json:"years"`
	Demographics []string `json:"demographics"`
	Indicators   []string `json:"indicators"`
}

// Ready reports whether the selection is complete enough to query map data.
// Demographic and indicator may be empty; the backend picks a default.
func (s Selection) Ready() bool {
	return s.Topic != "" && s.Year != 0
}

// Key identifies the record set the selection fetches. Anything keyed by a
// selection (fetch results, rendered layers) is stale once the key changes.
func (s Selection) Key() string {
	year := ""
	if s.Year != 0 {
		year = strconv.Itoa(s.Year)
	}
	return strings.Join([]string{s.Topic, year, s.Demographic, s.Indicator}, "|")
}

// WithTopic returns a copy of s with the topic replaced. The remaining
// fields are reconciled later by ApplyOptions.
func (s Selection) WithTopic(topic string) Selection {
	s.Topic = topic
	return s
}

// ApplyOptions fills unset fields from opts and replaces an indicator that is
// no longer offered. Fields that are set and still valid are left alone.
func (s Selection) ApplyOptions(opts Options) Selection {
	if s.Topic == "" && len(opts.Topics) > 0 {
		s.Topic = opts.Topics[0]
		for _, t := range opts.Topics {
			if strings.Contains(strings.ToLower(t), preferredTopic) {
				s.Topic = t
				break
			}
		}
	}
	if s.Year == 0 && len(opts.Years) > 0 {
		s.Year = opts.Years[0]
	}
	if s.Demographic == "" && len(opts.Demographics) > 0 {
		s.Demographic = opts.Demographics[0]
		if contains(opts.Demographics, DefaultDemographic) {
			s.Demographic = DefaultDemographic
		}
	}
	if len(opts.Indicators) > 0 && (s.Indicator == "" || !contains(opts.Indicators, s.Indicator)) {
		s.Indicator = opts.Indicators[0]
	}
	return s
}

// Query builds backend query parameters. Topic and year are always present
// on a ready selection; empty demographic and indicator are omitted.
func (s Selection) Query() url.Values {
	q := url.Values{}
	if s.Topic != "" {
		q.Set("topic", s.Topic)
	}
	if s.Year != 0 {
		q.Set("year", strconv.Itoa(s.Year))
	}
	if s.Demographic != "" {
		q.Set("demographic", s.Demographic)
	}
	if s.Indicator != "" {
		q.Set("indicator", s.Indicator)
	}
	return q
}

// Parse reads a selection from request query parameters. Missing parameters
// stay unset; the literal "undefined" some clients send is treated as unset.
func Parse(q url.Values) (Selection, error) {
	var s Selection
	s.Topic = clean(q.Get("topic"))
	s.Demographic = clean(q.Get("demographic"))
	s.Indicator = clean(q.Get("indicator"))
	if y := clean(q.Get("year")); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year < 0 {
			return Selection{}, fmt.Errorf("invalid year %q", y)
		}
		s.Year = year
	}
	return s, nil
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	if v == "undefined" || v == "null" {
		return ""
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
