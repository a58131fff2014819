package smklog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// widget is the entity used by the in-memory database below
type widget struct {
	ID   int64
	Name string
	Size int
	Tag  *int64

	rejectAdd bool
}

func (w *widget) BeforeAdd(ctx context.Context) error {
	if w.rejectAdd {
		return errors.New("rejected")
	}
	return nil
}

func widgetRepo(db *fakeDB) *BaseRepository[widget] {
	return NewRepository(NewUnitOfWork(db), newFakeSequences(), RepositoryOptions[widget]{
		Name:     "widget",
		Sequence: "widget_ids",
		ID:       func(w *widget) *int64 { return &w.ID },
	})
}

// fakeDB is an in-memory Database for widgets that understands the
// conditions produced by this package.
type fakeDB struct {
	mu   sync.Mutex
	rows map[int64]widget

	// failTx makes the next n transactions fail with txErr after applying
	// their operations to a scratch copy.
	failTx  int
	txErr   error
	txCalls int
	queries []*Query
}

func newFakeDB(rows ...widget) *fakeDB {
	db := &fakeDB{rows: make(map[int64]widget)}
	for _, r := range rows {
		db.rows[r.ID] = r
	}
	return db
}

func (db *fakeDB) snapshot() map[int64]widget {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[int64]widget, len(db.rows))
	for k, v := range db.rows {
		out[k] = v
	}
	return out
}

func (db *fakeDB) session(rows map[int64]widget) *fakeSession {
	return &fakeSession{db: db, rows: rows}
}

func (db *fakeDB) Insert(ctx context.Context, entity interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.session(db.rows).Insert(ctx, entity)
}

func (db *fakeDB) Update(ctx context.Context, entity interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.session(db.rows).Update(ctx, entity)
}

func (db *fakeDB) Delete(ctx context.Context, entity interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.session(db.rows).Delete(ctx, entity)
}

func (db *fakeDB) FindByID(ctx context.Context, id interface{}, dest interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.session(db.rows).FindByID(ctx, id, dest)
}

func (db *fakeDB) Query(ctx context.Context, dest interface{}, opts ...QueryOption) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queries = append(db.queries, NewQuery(opts...))
	return db.session(db.rows).Query(ctx, dest, opts...)
}

func (db *fakeDB) Count(ctx context.Context, model interface{}, opts ...QueryOption) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queries = append(db.queries, NewQuery(opts...))
	return db.session(db.rows).Count(ctx, model, opts...)
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return nil, NewError(ErrorTypeUnsupported, "exec")
}

func (db *fakeDB) Scalar(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return NewError(ErrorTypeUnsupported, "scalar")
}

func (db *fakeDB) Transaction(ctx context.Context, fn func(tx Session) error) error {
	scratch := db.snapshot()
	db.mu.Lock()
	db.txCalls++
	fail := db.failTx > 0
	if fail {
		db.failTx--
	}
	db.mu.Unlock()

	if err := fn(db.session(scratch)); err != nil {
		return err
	}
	if fail {
		return db.txErr
	}

	db.mu.Lock()
	db.rows = scratch
	db.mu.Unlock()
	return nil
}

func (db *fakeDB) Dialect() Dialect { return DialectSQLite }
func (db *fakeDB) Close() error     { return nil }

type fakeSession struct {
	db   *fakeDB
	rows map[int64]widget
}

func (s *fakeSession) Insert(_ context.Context, entity interface{}) error {
	w := entity.(*widget)
	if _, ok := s.rows[w.ID]; ok {
		return NewError(ErrorTypeDuplicate, "duplicate key")
	}
	s.rows[w.ID] = *w
	return nil
}

func (s *fakeSession) Update(_ context.Context, entity interface{}) error {
	w := entity.(*widget)
	if _, ok := s.rows[w.ID]; !ok {
		return NotFound("widget", w.ID)
	}
	s.rows[w.ID] = *w
	return nil
}

func (s *fakeSession) Delete(_ context.Context, entity interface{}) error {
	delete(s.rows, entity.(*widget).ID)
	return nil
}

func (s *fakeSession) FindByID(_ context.Context, id interface{}, dest interface{}) error {
	w, ok := s.rows[id.(int64)]
	if !ok {
		return NotFound("widget", id)
	}
	*dest.(*widget) = w
	return nil
}

func (s *fakeSession) Query(_ context.Context, dest interface{}, opts ...QueryOption) error {
	q := NewQuery(opts...)
	var out []*widget
	for _, w := range s.rows {
		w := w
		if matchesAll(&w, q.Conditions) {
			out = append(out, &w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j], q.Orders) })
	if q.Offset != nil {
		if *q.Offset >= len(out) {
			out = nil
		} else {
			out = out[*q.Offset:]
		}
	}
	if q.Limit != nil && *q.Limit < len(out) {
		out = out[:*q.Limit]
	}
	*dest.(*[]*widget) = out
	return nil
}

func (s *fakeSession) Count(ctx context.Context, _ interface{}, opts ...QueryOption) (int64, error) {
	var rows []*widget
	if err := s.Query(ctx, &rows, opts...); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (s *fakeSession) Exec(context.Context, string, ...interface{}) (Result, error) {
	return nil, NewError(ErrorTypeUnsupported, "exec")
}

func (s *fakeSession) Scalar(context.Context, interface{}, string, ...interface{}) error {
	return NewError(ErrorTypeUnsupported, "scalar")
}

func field(w *widget, name string) interface{} {
	switch name {
	case "id":
		return w.ID
	case "name":
		return w.Name
	case "size":
		return int64(w.Size)
	case "tag":
		if w.Tag == nil {
			return nil
		}
		return *w.Tag
	}
	panic("unknown field " + name)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func matchesAll(w *widget, conds []Condition) bool {
	for _, c := range conds {
		if !matches(w, c) {
			return false
		}
	}
	return true
}

func matches(w *widget, cond Condition) bool {
	switch c := cond.(type) {
	case CompositeCondition:
		switch c.Logic {
		case LogicOr:
			for _, sub := range c.Conditions {
				if matches(w, sub) {
					return true
				}
			}
			return false
		case LogicNot:
			return !matchesAll(w, c.Conditions)
		default:
			return matchesAll(w, c.Conditions)
		}
	case BasicCondition:
		got := field(w, c.FieldName)
		switch c.Op {
		case OpIsNull:
			return got == nil
		case OpIsNotNull:
			return got != nil
		case OpLike:
			return strings.Contains(got.(string), strings.Trim(c.Val.(string), "%"))
		}
		if s, ok := got.(string); ok {
			switch c.Op {
			case OpEqual:
				return s == c.Val
			case OpNotEqual:
				return s != c.Val
			}
			return false
		}
		g, ok := toInt64(got)
		if !ok {
			return false
		}
		if c.Op == OpIn || c.Op == OpNotIn {
			found := false
			for _, v := range flatten(c.Val) {
				if n, _ := toInt64(v); n == g {
					found = true
				}
			}
			return found == (c.Op == OpIn)
		}
		v, _ := toInt64(c.Val)
		switch c.Op {
		case OpEqual:
			return g == v
		case OpNotEqual:
			return g != v
		case OpGreaterThan:
			return g > v
		case OpGreaterThanOrEqual:
			return g >= v
		case OpLessThan:
			return g < v
		case OpLessThanOrEqual:
			return g <= v
		}
	}
	return false
}

func less(a, b *widget, orders []Order) bool {
	for _, o := range orders {
		x, y := field(a, o.Field), field(b, o.Field)
		var cmp int
		switch xv := x.(type) {
		case string:
			cmp = strings.Compare(xv, y.(string))
		default:
			xi, _ := toInt64(x)
			yi, _ := toInt64(y)
			switch {
			case xi < yi:
				cmp = -1
			case xi > yi:
				cmp = 1
			}
		}
		if cmp == 0 {
			continue
		}
		if o.Direction == OrderDesc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

// fakeSequences issues ids from an in-process counter.
type fakeSequences struct {
	mu     sync.Mutex
	values map[string]int64
}

func newFakeSequences() *fakeSequences {
	return &fakeSequences{values: make(map[string]int64)}
}

func (f *fakeSequences) Next(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name]++
	return f.values[name], nil
}

func (f *fakeSequences) EnsureAtLeast(_ context.Context, name string, floor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[name] < floor {
		f.values[name] = floor
	}
	return nil
}
