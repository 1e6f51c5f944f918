package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Relations(t *testing.T) {
	t.Run("lookup finds registered relation", func(t *testing.T) {
		assert := assert.New(t)

		reg := traineeRelations()

		rel, ok := reg.Lookup("Course")

		assert.True(ok)
		assert.Equal("Course", rel.Name)
	})

	t.Run("lookup misses unregistered relation", func(t *testing.T) {
		assert := assert.New(t)

		reg := traineeRelations()

		_, ok := reg.Lookup("Instructor")

		assert.False(ok)
	})

	t.Run("register replaces relation with same name", func(t *testing.T) {
		assert := assert.New(t)

		reg := traineeRelations()
		reg.Register(Relation[testTrainee]{
			Name: "Course",
			Value: func(tr testTrainee) any {
				return "replaced"
			},
		})

		rel, ok := reg.Lookup("Course")

		if !assert.True(ok) {
			return
		}
		assert.Equal("replaced", rel.Value(testTrainee{}))
		assert.Equal([]string{"Course"}, reg.Names(), "replacing must not duplicate the name")
	})

	t.Run("names preserves registration order", func(t *testing.T) {
		assert := assert.New(t)

		reg := NewRelations(
			Relation[testTrainee]{Name: "Course"},
			Relation[testTrainee]{Name: "Instructor"},
			Relation[testTrainee]{Name: "Cohort"},
		)

		assert.Equal([]string{"Course", "Instructor", "Cohort"}, reg.Names())
	})

	t.Run("nil registry has no relations", func(t *testing.T) {
		assert := assert.New(t)

		var reg *Relations[testTrainee]

		assert.False(reg.Has("Course"))
		assert.Nil(reg.Names())
	})

	t.Run("value hook distinguishes populated from unpopulated", func(t *testing.T) {
		assert := assert.New(t)

		reg := traineeRelations()
		rel, _ := reg.Lookup("Course")

		assert.Nil(rel.Value(testTrainee{}))
		assert.NotNil(rel.Value(testTrainee{Course: &testCourse{ID: 8}}))
	})
}

func Test_Plan(t *testing.T) {
	t.Run("nil plan has no relations", func(t *testing.T) {
		assert := assert.New(t)

		var p *Plan

		assert.Empty(p.Relations())
	})

	t.Run("include collects names in order", func(t *testing.T) {
		assert := assert.New(t)

		p := Include("Course", "Instructor")

		assert.Equal([]string{"Course", "Instructor"}, p.Relations())
	})

	t.Run("with relation chains onto include", func(t *testing.T) {
		assert := assert.New(t)

		p := Include("Course").WithRelation("Instructor")

		assert.Equal([]string{"Course", "Instructor"}, p.Relations())
	})

	t.Run("relations returns a copy", func(t *testing.T) {
		assert := assert.New(t)

		p := Include("Course")
		names := p.Relations()
		names[0] = "mutated"

		assert.Equal([]string{"Course"}, p.Relations())
	})
}
