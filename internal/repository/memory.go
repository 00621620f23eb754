package repository

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryCollection is an in-process Collection.  Documents are kept in
// their BSON form so filters, sorts and projections see the same values a
// MongoDB server would.  It understands the subset of the query language
// the services use: $eq $ne $gt $gte $lt $lte $in $nin $exists $and $or,
// the $set $unset $inc update operators and the $match $group $sort $skip
// $limit $project pipeline stages.
type MemoryCollection[T any] struct {
	mu     sync.RWMutex
	docs   []bson.M
	unique []string
}

// NewMemoryCollection returns an empty collection enforcing uniqueness of
// the given top-level fields.
func NewMemoryCollection[T any](unique ...string) *MemoryCollection[T] {
	return &MemoryCollection[T]{unique: unique}
}

func (m *MemoryCollection[T]) Find(ctx context.Context, q Query) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter, err := normalizeDoc(q.Filter)
	if err != nil {
		return nil, err
	}
	sortSpec, err := normalizeDoc(q.Sort)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := m.matching(filter)
	m.mu.RUnlock()

	sortDocs(matched, sortSpec)
	matched = window(matched, q.Skip, q.Limit)

	out := make([]*T, 0, len(matched))
	for _, doc := range matched {
		t, err := fromDoc[T](project(doc, q.Projection))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryCollection[T]) Count(ctx context.Context, filter bson.D) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := normalizeDoc(filter)
	if err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matching(f))), nil
}

func (m *MemoryCollection[T]) FindOne(ctx context.Context, filter, projection bson.D) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalizeDoc(filter)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	matched := m.matching(f)
	m.mu.RUnlock()
	if len(matched) == 0 {
		return nil, ErrNotFound
	}
	return fromDoc[T](project(matched[0], projection))
}

func (m *MemoryCollection[T]) Insert(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := toDoc(doc)
	if err != nil {
		return err
	}
	if _, ok := d["_id"]; !ok {
		return errors.New("memory: insert without _id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(d, -1); err != nil {
		return err
	}
	m.docs = append(m.docs, d)
	return nil
}

func (m *MemoryCollection[T]) Replace(ctx context.Context, id bson.ObjectID, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := toDoc(doc)
	if err != nil {
		return err
	}
	d["_id"] = id
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	if err := m.checkUnique(d, i); err != nil {
		return err
	}
	m.docs[i] = d
	return nil
}

func (m *MemoryCollection[T]) Update(ctx context.Context, filter, update bson.D) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := normalizeDoc(filter)
	if err != nil {
		return 0, err
	}
	u, err := normalizeDoc(update)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, doc := range m.docs {
		if !matches(doc, f) {
			continue
		}
		next, err := applyUpdate(doc, u)
		if err != nil {
			return 0, err
		}
		if err := m.checkUnique(next, i); err != nil {
			return 0, err
		}
		m.docs[i] = next
		return 1, nil
	}
	return 0, nil
}

func (m *MemoryCollection[T]) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.docs = slices.Delete(m.docs, i, i+1)
	return nil
}

func (m *MemoryCollection[T]) Aggregate(ctx context.Context, pipeline bson.A) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	norm, err := normalize(pipeline)
	if err != nil {
		return nil, err
	}
	stages, _ := asArray(norm)

	m.mu.RLock()
	rows := make([]bson.M, len(m.docs))
	for i, d := range m.docs {
		rows[i] = maps.Clone(d)
	}
	m.mu.RUnlock()

	for _, s := range stages {
		stage, ok := asDoc(s)
		if !ok || len(stage) != 1 {
			return nil, fmt.Errorf("memory: malformed pipeline stage %v", s)
		}
		arg := stage[0].Value
		switch stage[0].Key {
		case "$match":
			f, _ := asDoc(arg)
			rows = slices.DeleteFunc(rows, func(d bson.M) bool { return !matches(d, f) })
		case "$group":
			spec, _ := asDoc(arg)
			if rows, err = group(rows, spec); err != nil {
				return nil, err
			}
		case "$sort":
			spec, _ := asDoc(arg)
			sortDocs(rows, spec)
		case "$skip":
			n, _ := toFloat(arg)
			rows = window(rows, int64(n), 0)
		case "$limit":
			n, _ := toFloat(arg)
			rows = window(rows, 0, int64(n))
		case "$project":
			spec, _ := asDoc(arg)
			for i := range rows {
				rows[i] = project(rows[i], spec)
			}
		default:
			return nil, fmt.Errorf("memory: unsupported stage %s", stage[0].Key)
		}
	}
	return rows, nil
}

func (m *MemoryCollection[T]) matching(filter bson.D) []bson.M {
	var out []bson.M
	for _, d := range m.docs {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	return out
}

func (m *MemoryCollection[T]) indexOf(id bson.ObjectID) int {
	return slices.IndexFunc(m.docs, func(d bson.M) bool { return valuesEqual(d["_id"], id) })
}

// checkUnique reports a DuplicateError if doc collides with any stored
// document other than the one at index skip.
func (m *MemoryCollection[T]) checkUnique(doc bson.M, skip int) error {
	for _, field := range append([]string{"_id"}, m.unique...) {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		for i, other := range m.docs {
			if i == skip {
				continue
			}
			if ov, ok := other[field]; ok && valuesEqual(ov, v) {
				return &DuplicateError{Field: field, Value: v}
			}
		}
	}
	return nil
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.M
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func fromDoc[T any](d bson.M) (*T, error) {
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	var t T
	if err := bson.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// normalize round-trips v through BSON so Go values (time.Time, int,
// structs) compare against stored values of the same BSON type.
func normalize(v any) (any, error) {
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return nil, err
	}
	var d bson.M
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d["v"], nil
}

func normalizeDoc(d bson.D) (bson.D, error) {
	if len(d) == 0 {
		return nil, nil
	}
	v, err := normalize(d)
	if err != nil {
		return nil, err
	}
	out, _ := asDoc(v)
	return out, nil
}

func asDoc(v any) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		return mapToD(d), true
	case map[string]any:
		return mapToD(d), true
	}
	return nil, false
}

func mapToD(m map[string]any) bson.D {
	keys := slices.Sorted(maps.Keys(m))
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	}
	return nil, false
}

func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case bson.M:
			v, ok := c[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			i := slices.IndexFunc(c, func(e bson.E) bool { return e.Key == part })
			if i < 0 {
				return nil, false
			}
			cur = c[i].Value
		default:
			return nil, false
		}
	}
	return cur, true
}

func matches(doc bson.M, filter bson.D) bool {
	for _, e := range filter {
		switch e.Key {
		case "$and", "$or", "$nor":
			subs, _ := asArray(e.Value)
			hits := 0
			for _, s := range subs {
				f, _ := asDoc(s)
				if matches(doc, f) {
					hits++
				}
			}
			switch {
			case e.Key == "$and" && hits != len(subs):
				return false
			case e.Key == "$or" && hits == 0:
				return false
			case e.Key == "$nor" && hits > 0:
				return false
			}
		default:
			if !matchField(doc, e.Key, e.Value) {
				return false
			}
		}
	}
	return true
}

func isOperatorDoc(d bson.D) bool {
	if len(d) == 0 {
		return false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return false
		}
	}
	return true
}

func matchField(doc bson.M, path string, cond any) bool {
	val, present := lookup(doc, path)
	if ops, ok := asDoc(cond); ok && isOperatorDoc(ops) {
		for _, op := range ops {
			if !applyOp(val, present, op.Key, op.Value) {
				return false
			}
		}
		return true
	}
	return equalsMatch(val, present, cond)
}

func equalsMatch(val any, present bool, want any) bool {
	if want == nil {
		return !present || val == nil
	}
	if !present {
		return false
	}
	if arr, ok := asArray(val); ok {
		if _, wantArr := asArray(want); !wantArr {
			return slices.ContainsFunc(arr, func(x any) bool { return valuesEqual(x, want) })
		}
	}
	return valuesEqual(val, want)
}

func applyOp(val any, present bool, op string, arg any) bool {
	switch op {
	case "$eq":
		return equalsMatch(val, present, arg)
	case "$ne":
		return !equalsMatch(val, present, arg)
	case "$in", "$nin":
		list, _ := asArray(arg)
		hit := slices.ContainsFunc(list, func(x any) bool { return equalsMatch(val, present, x) })
		return hit == (op == "$in")
	case "$exists":
		return truthy(arg) == present
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false
		}
		if arr, ok := asArray(val); ok {
			return slices.ContainsFunc(arr, func(x any) bool { return compareOp(x, op, arg) })
		}
		return compareOp(val, op, arg)
	}
	return false
}

func compareOp(val any, op string, arg any) bool {
	c, ok := compareValues(val, arg)
	if !ok {
		return false
	}
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isIntegral(v any) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

// compareValues orders two values of the same BSON type class.  The
// boolean is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case nil:
		return 0, b == nil
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case y:
				return -1, true
			default:
				return 1, true
			}
		}
	case bson.DateTime:
		if y, ok := b.(bson.DateTime); ok {
			return cmp.Compare(int64(x), int64(y)), true
		}
	case bson.ObjectID:
		if y, ok := b.(bson.ObjectID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func typeRank(v any) int {
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case bson.D, bson.M, map[string]any:
		return 3
	case bson.A, []any:
		return 4
	case bson.ObjectID:
		return 5
	case bool:
		return 6
	case bson.DateTime:
		return 7
	}
	return 8
}

func orderValues(a, b any) int {
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return cmp.Compare(typeRank(a), typeRank(b))
}

func sortDocs(docs []bson.M, spec bson.D) {
	if len(spec) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b bson.M) int {
		for _, e := range spec {
			av, _ := lookup(a, e.Key)
			bv, _ := lookup(b, e.Key)
			c := orderValues(av, bv)
			if dir, _ := toFloat(e.Value); dir < 0 {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func window(docs []bson.M, skip, limit int64) []bson.M {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return v != nil
}

// project applies an include (field: 1) or exclude (field: 0) projection
// to a copy of doc.  _id is kept unless explicitly excluded.
func project(doc bson.M, spec bson.D) bson.M {
	if len(spec) == 0 {
		return doc
	}
	include := slices.ContainsFunc(spec, func(e bson.E) bool { return e.Key != "_id" && truthy(e.Value) })
	if !include {
		out := maps.Clone(doc)
		for _, e := range spec {
			delete(out, e.Key)
		}
		return out
	}
	out := bson.M{}
	if id, ok := doc["_id"]; ok {
		out["_id"] = id
	}
	for _, e := range spec {
		if !truthy(e.Value) {
			delete(out, e.Key)
			continue
		}
		if v, ok := doc[e.Key]; ok {
			out[e.Key] = v
		}
	}
	return out
}

func applyUpdate(doc bson.M, update bson.D) (bson.M, error) {
	out := maps.Clone(doc)
	for _, op := range update {
		fields, ok := asDoc(op.Value)
		if !ok {
			return nil, fmt.Errorf("memory: malformed %s", op.Key)
		}
		for _, f := range fields {
			switch op.Key {
			case "$set":
				out[f.Key] = f.Value
			case "$unset":
				delete(out, f.Key)
			case "$inc":
				cur, _ := toFloat(out[f.Key])
				by, ok := toFloat(f.Value)
				if !ok {
					return nil, fmt.Errorf("memory: $inc by non-number %v", f.Value)
				}
				if isIntegral(f.Value) && (out[f.Key] == nil || isIntegral(out[f.Key])) {
					out[f.Key] = int64(cur + by)
				} else {
					out[f.Key] = cur + by
				}
			default:
				return nil, fmt.Errorf("memory: unsupported update operator %s", op.Key)
			}
		}
	}
	return out, nil
}

type groupBucket struct {
	key  any
	vals map[string][]any
}

// group implements the $group stage for the $sum $avg $min $max
// accumulators.  The _id expression is a "$field" path or a literal.
func group(rows []bson.M, spec bson.D) ([]bson.M, error) {
	var idExpr any
	var accs []bson.E
	for _, e := range spec {
		if e.Key == "_id" {
			idExpr = e.Value
			continue
		}
		acc, ok := asDoc(e.Value)
		if !ok || len(acc) != 1 {
			return nil, fmt.Errorf("memory: malformed accumulator %s", e.Key)
		}
		switch acc[0].Key {
		case "$sum", "$avg", "$min", "$max":
		default:
			return nil, fmt.Errorf("memory: unsupported accumulator %s", acc[0].Key)
		}
		accs = append(accs, bson.E{Key: e.Key, Value: acc[0]})
	}

	var buckets []*groupBucket
	for _, row := range rows {
		key := eval(row, idExpr)
		i := slices.IndexFunc(buckets, func(b *groupBucket) bool { return valuesEqual(b.key, key) })
		if i < 0 {
			buckets = append(buckets, &groupBucket{key: key, vals: map[string][]any{}})
			i = len(buckets) - 1
		}
		for _, a := range accs {
			op := a.Value.(bson.E)
			buckets[i].vals[a.Key] = append(buckets[i].vals[a.Key], eval(row, op.Value))
		}
	}

	out := make([]bson.M, 0, len(buckets))
	for _, b := range buckets {
		row := bson.M{"_id": b.key}
		for _, a := range accs {
			row[a.Key] = accumulate(a.Value.(bson.E).Key, b.vals[a.Key])
		}
		out = append(out, row)
	}
	return out, nil
}

func eval(row bson.M, expr any) any {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := lookup(row, s[1:])
		return v
	}
	return expr
}

func accumulate(op string, vals []any) any {
	switch op {
	case "$sum":
		var sum float64
		integral := true
		for _, v := range vals {
			if f, ok := toFloat(v); ok {
				sum += f
				integral = integral && isIntegral(v)
			}
		}
		if integral {
			return int64(sum)
		}
		return sum
	case "$avg":
		var sum float64
		n := 0
		for _, v := range vals {
			if f, ok := toFloat(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return sum / float64(n)
	default:
		var best any
		for _, v := range vals {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := orderValues(v, best)
			if (op == "$min" && c < 0) || (op == "$max" && c > 0) {
				best = v
			}
		}
		return best
	}
}
