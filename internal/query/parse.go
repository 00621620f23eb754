// Package query turns client query strings into store queries: filters
// with comparison operators, multi-key sorting, field projection and page
// based pagination.  Evaluation is deferred to Builder.Exec.
package query

import (
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
)

// Control keys are never treated as filters.
const (
	KeyPage   = "page"
	KeySort   = "sort"
	KeyLimit  = "limit"
	KeyFields = "fields"
)

// Fallbacks used when Defaults leaves a value empty.
const (
	DefaultSort  = "-createdAt"
	DefaultLimit = 100
)

var controlKeys = []string{KeyPage, KeySort, KeyLimit, KeyFields}

// comparison operators accepted as field[op]=value
var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

var (
	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
	opKeyPattern = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]*)\]$`)
	objectIDHex  = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// Defaults are the per-resource settings applied when the client leaves a
// control key out.  Hidden fields are excluded from every projection.
type Defaults struct {
	Sort   string
	Limit  int64
	Hidden []string
}

// hides reports whether field is, or lies below, a hidden field.  Hidden
// fields cannot be filtered or sorted on.
func (d Defaults) hides(field string) bool {
	return slices.ContainsFunc(d.Hidden, func(h string) bool {
		return field == h || strings.HasPrefix(field, h+".")
	})
}

func (d Defaults) sort() string {
	if d.Sort == "" {
		return DefaultSort
	}
	return d.Sort
}

func (d Defaults) limit() int64 {
	if d.Limit <= 0 {
		return DefaultLimit
	}
	return d.Limit
}

// Spec is the decomposed query of one request.
type Spec struct {
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Page       int64
	Limit      int64
	// PageGiven records whether the client asked for a page explicitly.
	PageGiven bool
}

// Skip is the number of documents before the requested page.
func (s Spec) Skip() int64 {
	if s.Page < 1 || s.Limit < 1 {
		return 0
	}
	return (s.Page - 1) * s.Limit
}

// Parse applies every step to values.
func Parse(values url.Values, d Defaults) (Spec, error) {
	var s Spec
	var errs []string
	for _, step := range []func(url.Values, Defaults, *Spec) []string{parseFilter, parseSort, parseFields, parsePage} {
		errs = append(errs, step(values, d, &s)...)
	}
	if len(errs) > 0 {
		return Spec{}, apperror.Validation(errs)
	}
	return s, nil
}

// parseFilter turns the non-control keys into a filter.  Plain keys are
// equality matches (repeated keys become $in); field[op] keys become
// comparisons.
func parseFilter(values url.Values, d Defaults, s *Spec) []string {
	var errs []string
	type cond struct {
		field string
		ops   bson.D
	}
	var conds []*cond
	get := func(field string) *cond {
		for _, c := range conds {
			if c.field == field {
				return c
			}
		}
		c := &cond{field: field}
		conds = append(conds, c)
		return c
	}

	for _, key := range slices.Sorted(maps.Keys(values)) {
		if slices.Contains(controlKeys, key) {
			continue
		}
		field, op := key, ""
		if m := opKeyPattern.FindStringSubmatch(key); m != nil {
			field, op = m[1], m[2]
		}
		if !fieldPattern.MatchString(field) {
			errs = append(errs, fmt.Sprintf("invalid filter field %q", field))
			continue
		}
		if d.hides(field) {
			errs = append(errs, fmt.Sprintf("cannot filter on field %q", field))
			continue
		}
		vals := values[key]
		if op == "" {
			if len(vals) == 1 {
				get(field).ops = append(get(field).ops, bson.E{Key: "$eq", Value: Coerce(vals[0])})
			} else {
				in := bson.A{}
				for _, v := range vals {
					in = append(in, Coerce(v))
				}
				get(field).ops = append(get(field).ops, bson.E{Key: "$in", Value: in})
			}
			continue
		}
		mop, ok := operators[op]
		if !ok {
			errs = append(errs, fmt.Sprintf("unsupported operator %q on %s", op, field))
			continue
		}
		get(field).ops = append(get(field).ops, bson.E{Key: mop, Value: Coerce(vals[len(vals)-1])})
	}

	for _, c := range conds {
		if len(c.ops) == 1 && c.ops[0].Key == "$eq" {
			s.Filter = append(s.Filter, bson.E{Key: c.field, Value: c.ops[0].Value})
			continue
		}
		s.Filter = append(s.Filter, bson.E{Key: c.field, Value: c.ops})
	}
	return errs
}

// parseSort reads "a,-b" into ascending a then descending b.  _id is
// appended as a tiebreaker so pages never overlap.
func parseSort(values url.Values, d Defaults, s *Spec) []string {
	raw := values.Get(KeySort)
	if strings.TrimSpace(raw) == "" {
		raw = d.sort()
	}
	var errs []string
	sort := bson.D{}
	hasID := false
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir, part = -1, part[1:]
		}
		if !fieldPattern.MatchString(part) {
			errs = append(errs, fmt.Sprintf("invalid sort field %q", part))
			continue
		}
		if d.hides(part) {
			errs = append(errs, fmt.Sprintf("cannot sort on field %q", part))
			continue
		}
		if part == "_id" {
			hasID = true
		}
		sort = append(sort, bson.E{Key: part, Value: dir})
	}
	if !hasID {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}
	s.Sort = sort
	return errs
}

// parseFields reads an include list ("name,price") or an exclude list
// ("-summary,-images").  Hidden fields are always excluded.
func parseFields(values url.Values, d Defaults, s *Spec) []string {
	var include, exclude []string
	var errs []string
	for _, part := range strings.Split(values.Get(KeyFields), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		neg := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if !fieldPattern.MatchString(name) {
			errs = append(errs, fmt.Sprintf("invalid projection field %q", name))
			continue
		}
		switch {
		case neg:
			exclude = append(exclude, name)
		case !slices.Contains(d.Hidden, name):
			include = append(include, name)
		}
	}
	if len(include) > 0 && slices.ContainsFunc(exclude, func(f string) bool { return f != "_id" }) {
		return append(errs, "projection cannot mix included and excluded fields")
	}

	proj := bson.D{}
	if len(include) > 0 {
		for _, f := range include {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		if slices.Contains(exclude, "_id") {
			proj = append(proj, bson.E{Key: "_id", Value: 0})
		}
	} else {
		for _, f := range append(slices.Clone(d.Hidden), exclude...) {
			if !slices.ContainsFunc(proj, func(e bson.E) bool { return e.Key == f }) {
				proj = append(proj, bson.E{Key: f, Value: 0})
			}
		}
	}
	if len(proj) > 0 {
		s.Projection = proj
	}
	return errs
}

func parsePage(values url.Values, d Defaults, s *Spec) []string {
	var errs []string
	s.Page, s.Limit = 1, d.limit()
	if _, ok := values[KeyPage]; ok {
		s.PageGiven = true
		n, err := strconv.ParseInt(values.Get(KeyPage), 10, 64)
		if err != nil || n < 1 {
			errs = append(errs, "page must be a positive integer")
		} else {
			s.Page = n
		}
	}
	if _, ok := values[KeyLimit]; ok {
		n, err := strconv.ParseInt(values.Get(KeyLimit), 10, 64)
		if err != nil || n < 1 {
			errs = append(errs, "limit must be a positive integer")
		} else {
			s.Limit = n
		}
	}
	return errs
}

// Coerce converts a query string value into the most specific type it
// spells: integer, float, boolean, object id, date, or the string itself.
func Coerce(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if objectIDHex.MatchString(v) {
		if id, err := bson.ObjectIDFromHex(v); err == nil {
			return id
		}
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return v
}
