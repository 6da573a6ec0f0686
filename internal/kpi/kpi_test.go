package kpi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	t.Run("zero total yields all zero rates", func(t *testing.T) {
		rates := Compute(0, 0, 0)

		assert.Equal(t, Rates{}, rates)
		assert.False(t, math.IsNaN(rates.FTQ))
		assert.False(t, math.IsInf(rates.FTQ, 0))
	})

	t.Run("counts example", func(t *testing.T) {
		rates := Compute(1, 2, 1)

		assert.Equal(t, 25.0, rates.FTQ)
		assert.Equal(t, 25.0, rates.ProductionRate)
		assert.Equal(t, 50.0, rates.RejectionRate)
	})

	t.Run("incomplete units dilute the rates", func(t *testing.T) {
		rates := Compute(8, 0, 2)

		assert.Equal(t, 80.0, rates.FTQ)
		assert.Equal(t, 0.0, rates.RejectionRate)
	})

	t.Run("ftq always equals production rate", func(t *testing.T) {
		triples := [][3]int{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
			{7, 3, 2}, {100, 0, 0}, {13, 57, 31},
		}
		for _, triple := range triples {
			rates := Compute(triple[0], triple[1], triple[2])
			assert.Equal(t, rates.FTQ, rates.ProductionRate, "triple %v", triple)
		}
	})
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, Round2(100.0/3.0))
	assert.Equal(t, 66.67, Round2(200.0/3.0))
	assert.Equal(t, 0.0, Round2(0))
}

func TestRates_Rounded(t *testing.T) {
	rates := Compute(1, 1, 1).Rounded()

	assert.Equal(t, 33.33, rates.FTQ)
	assert.Equal(t, 33.33, rates.ProductionRate)
	assert.Equal(t, 33.33, rates.RejectionRate)
}
