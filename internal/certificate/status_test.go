package certificate

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func datePtr(d civil.Date) *civil.Date { return &d }

func TestComputeExpiryStatusBoundaries(t *testing.T) {
	today := civil.Date{Year: 2024, Month: 3, Day: 15}

	cases := []struct {
		name   string
		offset int
		want   ExpiryStatus
	}{
		{"yesterday", -1, ExpiryExpired},
		{"today", 0, ExpiringSoon},
		{"thirty days", 30, ExpiringSoon},
		{"thirty-one days", 31, ExpiryActive},
		{"a year", 365, ExpiryActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expiry := today.AddDays(tc.offset)
			assert.Equal(t, tc.want, ComputeExpiryStatus(false, &expiry, today))
		})
	}
}

func TestComputeExpiryStatusLifetimeWins(t *testing.T) {
	today := civil.Date{Year: 2024, Month: 3, Day: 15}
	for _, expiry := range []*civil.Date{nil, datePtr(today.AddDays(-400)), datePtr(today.AddDays(10)), datePtr(today.AddDays(900))} {
		assert.Equal(t, ExpiryLifetime, ComputeExpiryStatus(true, expiry, today))
	}
}

func TestComputeExpiryStatusMissingExpiryIsActive(t *testing.T) {
	assert.Equal(t, ExpiryActive, ComputeExpiryStatus(false, nil, civil.Date{Year: 2024, Month: 1, Day: 1}))
}

func TestResultForLifetimeLabel(t *testing.T) {
	c := Certificate{
		ID:             "ITEK001CER004",
		CandidateName:  "Ravi",
		Course:         "Mechanical Design Engineer - Inventor",
		IssueDate:      civil.Date{Year: 2024, Month: 1, Day: 1},
		CompletionDate: civil.Date{Year: 2023, Month: 12, Day: 20},
		Lifetime:       true,
		Status:         StatusValid,
	}
	res := ResultFor(c, civil.Date{Year: 2030, Month: 1, Day: 1})
	assert.Equal(t, LifetimeLabel, res.ExpiryDate)
	assert.Equal(t, ExpiryLifetime, res.ExpiryStatus)
	assert.Equal(t, "2024-01-01", res.IssueDate)
	assert.True(t, res.Valid())
}

func TestNotFoundResult(t *testing.T) {
	res := NotFoundResult("ZZZ999")
	assert.Equal(t, "ZZZ999", res.ID)
	assert.Equal(t, NotAvailable, res.Name)
	assert.Equal(t, NotAvailable, res.Course)
	assert.Equal(t, NotAvailable, res.IssueDate)
	assert.Equal(t, NotAvailable, res.ExpiryDate)
	assert.Equal(t, NotAvailable, res.CompletionDate)
	assert.Equal(t, StatusInvalid, res.Status)
	assert.Zero(t, res.Score)
	assert.Equal(t, ExpiryInvalid, res.ExpiryStatus)
}
