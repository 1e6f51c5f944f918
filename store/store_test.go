package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testCourse struct {
	ID   int64
	Name string
}

type testTrainee struct {
	ID       int64
	Name     string
	CourseID int64
	Course   *testCourse
}

func (tr testTrainee) RecordID() int64 {
	return tr.ID
}

func traineeRelations() *Relations[testTrainee] {
	return NewRelations(Relation[testTrainee]{
		Name: "Course",
		Value: func(tr testTrainee) any {
			if tr.Course == nil {
				return nil
			}
			return tr.Course
		},
	})
}

// fakeSession records every call made to it so tests can check how the
// RecordStore drives its sessions.
type fakeSession struct {
	recs []testTrainee

	selectErr error
	loadErr   error
	commitErr error
	closeErr  error

	loaded  []string
	disps   map[string]Disposition
	inserts []*testTrainee
	updates []*testTrainee
	commits int
	closes  int

	nextID int64
}

func (s *fakeSession) Select(ctx context.Context) ([]testTrainee, error) {
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	recs := make([]testTrainee, len(s.recs))
	copy(recs, s.recs)
	return recs, nil
}

func (s *fakeSession) LoadRelation(ctx context.Context, recs []testTrainee, relation string) ([]testTrainee, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	s.loaded = append(s.loaded, relation)
	for i := range recs {
		recs[i].Course = &testCourse{ID: recs[i].CourseID, Name: "Basic Waterfowl"}
	}
	return recs, nil
}

func (s *fakeSession) SetDisposition(relation string, value any, d Disposition) error {
	if s.disps == nil {
		s.disps = map[string]Disposition{}
	}
	s.disps[relation] = d
	return nil
}

func (s *fakeSession) EnqueueInsert(rec *testTrainee) error {
	s.inserts = append(s.inserts, rec)
	return nil
}

func (s *fakeSession) MarkModified(rec *testTrainee) error {
	s.updates = append(s.updates, rec)
	return nil
}

func (s *fakeSession) Commit(ctx context.Context) error {
	s.commits++
	if s.commitErr != nil {
		return s.commitErr
	}
	for _, rec := range s.inserts {
		s.nextID++
		rec.ID = s.nextID
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.closes++
	return s.closeErr
}

func factoryFor(sess *fakeSession) SessionFactory[int64, testTrainee] {
	return func(descriptor string) (Session[int64, testTrainee], error) {
		return sess, nil
	}
}

func Test_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("nil predicate returns every record", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{
			{ID: 1, Name: "Gamzee", CourseID: 8},
			{ID: 2, Name: "Tavros", CourseID: 8},
		}}
		rs := New(factoryFor(sess), traineeRelations())

		actual, err := rs.Get(ctx, nil, nil, "")

		if !assert.NoError(err) {
			return
		}
		assert.Len(actual, 2)
		assert.Equal(1, sess.closes, "session was not released exactly once")
	})

	t.Run("predicate filters records", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{
			{ID: 1, Name: "Gamzee", CourseID: 8},
			{ID: 2, Name: "Tavros", CourseID: 9},
		}}
		rs := New(factoryFor(sess), traineeRelations())

		actual, err := rs.Get(ctx, func(tr testTrainee) bool {
			return tr.CourseID == 9
		}, nil, "")

		if !assert.NoError(err) {
			return
		}
		if !assert.Len(actual, 1) {
			return
		}
		assert.Equal("Tavros", actual[0].Name)
	})

	t.Run("predicate matching nothing returns empty non-nil slice", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{
			{ID: 1, Name: "Gamzee", CourseID: 8},
		}}
		rs := New(factoryFor(sess), traineeRelations())

		actual, err := rs.Get(ctx, func(tr testTrainee) bool {
			return false
		}, nil, "")

		if !assert.NoError(err) {
			return
		}
		assert.NotNil(actual)
		assert.Len(actual, 0)
	})

	t.Run("nil plan loads no relations", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{
			{ID: 1, Name: "Gamzee", CourseID: 8},
		}}
		rs := New(factoryFor(sess), traineeRelations())

		actual, err := rs.Get(ctx, nil, nil, "")

		if !assert.NoError(err) {
			return
		}
		assert.Empty(sess.loaded)
		assert.Nil(actual[0].Course)
	})

	t.Run("plan loads named relation", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{
			{ID: 1, Name: "Gamzee", CourseID: 8},
		}}
		rs := New(factoryFor(sess), traineeRelations())

		actual, err := rs.Get(ctx, nil, Include("Course"), "")

		if !assert.NoError(err) {
			return
		}
		assert.Equal([]string{"Course"}, sess.loaded)
		if !assert.NotNil(actual[0].Course) {
			return
		}
		assert.Equal(int64(8), actual[0].Course.ID)
	})

	t.Run("plan naming unknown relation returns ErrQuery", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{
			{ID: 1, Name: "Gamzee", CourseID: 8},
		}}
		rs := New(factoryFor(sess), traineeRelations())

		_, err := rs.Get(ctx, nil, Include("Instructor"), "")

		assert.ErrorIs(err, ErrQuery)
		assert.Empty(sess.loaded, "unknown relation reached the session")
		assert.Equal(1, sess.closes, "session was not released on the error path")
	})

	t.Run("factory error is returned as-is", func(t *testing.T) {
		assert := assert.New(t)

		factoryErr := fmt.Errorf("%w: store is down", ErrConnection)
		rs := New(func(descriptor string) (Session[int64, testTrainee], error) {
			return nil, factoryErr
		}, traineeRelations())

		_, err := rs.Get(ctx, nil, nil, "")

		assert.ErrorIs(err, ErrConnection)
	})

	t.Run("select error releases session", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{selectErr: errors.New("disk exploded")}
		rs := New(factoryFor(sess), traineeRelations())

		_, err := rs.Get(ctx, nil, nil, "")

		assert.Error(err)
		assert.Equal(1, sess.closes)
	})

	t.Run("connection descriptor is passed to the factory", func(t *testing.T) {
		assert := assert.New(t)

		var gotDescriptor string
		sess := &fakeSession{}
		rs := New(func(descriptor string) (Session[int64, testTrainee], error) {
			gotDescriptor = descriptor
			return sess, nil
		}, traineeRelations())

		_, err := rs.Get(ctx, nil, nil, "sqlite:/somewhere/else")

		assert.NoError(err)
		assert.Equal("sqlite:/somewhere/else", gotDescriptor)
	})
}

func Test_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("insert with no overrides commits and writes back the key", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{}
		rs := New(factoryFor(sess), traineeRelations())

		input := testTrainee{Name: "Nepeta", Course: &testCourse{Name: "Basic Waterfowl"}}
		actual, err := rs.Add(ctx, input, nil, "")

		if !assert.NoError(err) {
			return
		}
		assert.Equal(int64(1), actual.ID, "generated key was not written back")
		assert.Equal("Nepeta", actual.Name)
		assert.Equal(1, sess.commits)
		assert.Empty(sess.disps, "no dispositions should have been set")
		assert.Equal(1, sess.closes)
	})

	t.Run("override forwards disposition to the session", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{}
		rs := New(factoryFor(sess), traineeRelations())

		existing := &testCourse{ID: 8, Name: "Basic Waterfowl"}
		input := testTrainee{Name: "Nepeta", Course: existing}

		_, err := rs.Add(ctx, input, func(tr testTrainee) []Override {
			return []Override{{Relation: "Course", Value: tr.Course, Disposition: Unchanged}}
		}, "")

		if !assert.NoError(err) {
			return
		}
		assert.Equal(map[string]Disposition{"Course": Unchanged}, sess.disps)
	})

	t.Run("override naming unknown relation is skipped without error", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{}
		rs := New(factoryFor(sess), traineeRelations())

		input := testTrainee{Name: "Nepeta"}
		_, err := rs.Add(ctx, input, func(tr testTrainee) []Override {
			return []Override{{Relation: "Instructor", Value: &testCourse{}, Disposition: Unchanged}}
		}, "")

		if !assert.NoError(err) {
			return
		}
		assert.Empty(sess.disps)
		assert.Equal(1, sess.commits, "insert should still have been committed")
	})

	t.Run("override with nil value is skipped without error", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{}
		rs := New(factoryFor(sess), traineeRelations())

		input := testTrainee{Name: "Nepeta"}
		_, err := rs.Add(ctx, input, func(tr testTrainee) []Override {
			return []Override{{Relation: "Course", Value: nil, Disposition: Unchanged}}
		}, "")

		if !assert.NoError(err) {
			return
		}
		assert.Empty(sess.disps)
		assert.Equal(1, sess.commits)
	})

	t.Run("commit error is returned and session released", func(t *testing.T) {
		assert := assert.New(t)

		commitErr := fmt.Errorf("%w: name must be unique", ErrValidation)
		sess := &fakeSession{commitErr: commitErr}
		rs := New(factoryFor(sess), traineeRelations())

		_, err := rs.Add(ctx, testTrainee{Name: "Nepeta"}, nil, "")

		assert.ErrorIs(err, ErrValidation)
		assert.Equal(1, sess.closes)
	})

	t.Run("factory error is returned as-is", func(t *testing.T) {
		assert := assert.New(t)

		rs := New(func(descriptor string) (Session[int64, testTrainee], error) {
			return nil, fmt.Errorf("%w: store is down", ErrConnection)
		}, traineeRelations())

		_, err := rs.Add(ctx, testTrainee{Name: "Nepeta"}, nil, "")

		assert.ErrorIs(err, ErrConnection)
	})
}

func Test_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the record modified and commits", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{}
		rs := New(factoryFor(sess), traineeRelations())

		err := rs.Update(ctx, testTrainee{ID: 1, Name: "Nepeta"}, "")

		if !assert.NoError(err) {
			return
		}
		if !assert.Len(sess.updates, 1) {
			return
		}
		assert.Equal("Nepeta", sess.updates[0].Name)
		assert.Equal(1, sess.commits)
		assert.Equal(1, sess.closes)
	})

	t.Run("commit error is returned and session released", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{commitErr: ErrNotFound}
		rs := New(factoryFor(sess), traineeRelations())

		err := rs.Update(ctx, testTrainee{ID: 412, Name: "Nepeta"}, "")

		assert.ErrorIs(err, ErrNotFound)
		assert.Equal(1, sess.closes)
	})

	t.Run("factory error is returned as-is", func(t *testing.T) {
		assert := assert.New(t)

		rs := New(func(descriptor string) (Session[int64, testTrainee], error) {
			return nil, fmt.Errorf("%w: store is down", ErrConnection)
		}, traineeRelations())

		err := rs.Update(ctx, testTrainee{ID: 1}, "")

		assert.ErrorIs(err, ErrConnection)
	})
}

func Test_New(t *testing.T) {
	t.Run("nil factory panics", func(t *testing.T) {
		assert := assert.New(t)

		assert.Panics(func() {
			New[int64, testTrainee](nil, nil)
		})
	})

	t.Run("nil registry is a valid empty registry", func(t *testing.T) {
		assert := assert.New(t)

		sess := &fakeSession{recs: []testTrainee{{ID: 1}}}
		rs := New(factoryFor(sess), nil)

		actual, err := rs.Get(context.Background(), nil, nil, "")

		assert.NoError(err)
		assert.Len(actual, 1)

		_, err = rs.Get(context.Background(), nil, Include("Course"), "")
		assert.ErrorIs(err, ErrQuery)
	})
}
