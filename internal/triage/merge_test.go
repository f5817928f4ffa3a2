package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func ageYears(v int) *AgeValue  { return &AgeValue{Value: v, Unit: AgeUnitYears} }
func ageMonths(v int) *AgeValue { return &AgeValue{Value: v, Unit: AgeUnitMonths} }

func TestMergeIdempotent(t *testing.T) {
	ext := Extraction{
		Age:          ageYears(35),
		Severity:     SeverityMild,
		DurationDays: f64(2),
		Symptoms:     []string{"cough", "sore_throat"},
	}

	once := Merge(NewSlotSet(), ext)
	twice := Merge(once, ext)

	assert.Equal(t, once, twice)
}

func TestMergeLastWriteWinsPerSlot(t *testing.T) {
	s := Merge(NewSlotSet(), Extraction{Severity: SeverityMild, Age: ageYears(30)})
	s = Merge(s, Extraction{Severity: SeveritySevere})

	assert.Equal(t, SeveritySevere, s.Severity)
	// Age was not mentioned again; it must not be cleared.
	require.NotNil(t, s.Age)
	assert.Equal(t, 30, s.Age.Value)
}

func TestMergeSymptomsMonotonic(t *testing.T) {
	s := Merge(NewSlotSet(), Extraction{Symptoms: []string{"cough"}})
	s = Merge(s, Extraction{Symptoms: []string{"fever"}})
	s = Merge(s, Extraction{Symptoms: []string{"cough"}})

	assert.Equal(t, []string{"cough", "fever"}, s.SymptomTags())
}

func TestMergeConvergenceUnderPermutation(t *testing.T) {
	contributions := []Extraction{
		{Age: ageYears(35)},
		{Severity: SeverityMild},
		{Symptoms: []string{"cough", "sore_throat"}, DurationDays: f64(2)},
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	var reference SlotSet
	for i, perm := range permutations {
		s := NewSlotSet()
		firstComplete := -1
		lastRequired := -1
		for turn, idx := range perm {
			s = Merge(s, contributions[idx])
			if firstComplete == -1 && IsComplete(s) {
				firstComplete = turn
			}
			if idx == 0 || idx == 1 { // age and severity contributions
				if turn > lastRequired {
					lastRequired = turn
				}
			}
		}
		require.True(t, IsComplete(s))
		// Completeness is reached exactly when the later of the two
		// required contributions lands, whatever the order.
		assert.Equal(t, lastRequired, firstComplete)

		if i == 0 {
			reference = s
		} else {
			assert.Equal(t, reference, s, "permutation %v diverged", perm)
		}
	}
}

func TestCompletenessPolicy(t *testing.T) {
	s := NewSlotSet()
	assert.False(t, IsComplete(s))
	assert.Equal(t, SlotAge, NextMissing(s))

	s = Merge(s, Extraction{Age: ageYears(35)})
	assert.False(t, IsComplete(s))
	assert.Equal(t, SlotSeverity, NextMissing(s))

	s = Merge(s, Extraction{Severity: SeverityModerate})
	assert.True(t, IsComplete(s))
	assert.Equal(t, "", NextMissing(s))

	// Duration is desired but never blocking.
	assert.Nil(t, s.DurationDays)
}

func TestAgeInMonths(t *testing.T) {
	assert.Equal(t, 24, ageYears(2).InMonths())
	assert.Equal(t, 2, ageMonths(2).InMonths())
}

func TestCloneDoesNotAlias(t *testing.T) {
	s := Merge(NewSlotSet(), Extraction{Symptoms: []string{"cough"}})
	c := s.Clone()
	c.Symptoms["fever"] = true
	c.Asked[SlotAge] = true

	assert.Equal(t, []string{"cough"}, s.SymptomTags())
	assert.Empty(t, s.AskedSlots())
}
