package transfusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bloodbank/bloodbank/internal/domain/donor"
)

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		donor, recipient string
		want             bool
	}{
		{"O-", "O-", true},
		{"O-", "AB+", true},
		{"O+", "O-", false},
		{"A+", "A+", true},
		{"A+", "A-", false},
		{"A-", "A+", true},
		{"A+", "B+", false},
		{"B-", "AB-", true},
		{"B+", "AB-", false},
		{"AB+", "AB+", true},
		{"AB+", "O+", false},
		{"AB-", "AB+", true},
		{"A+", "Z+", false},
		{"Z+", "AB+", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCompatible(tt.donor, tt.recipient), "%s -> %s", tt.donor, tt.recipient)
	}
}

func TestIsCompatible_UniversalDonorAndRecipient(t *testing.T) {
	for _, bt := range donor.BloodTypes {
		assert.True(t, IsCompatible(donor.BloodTypeONeg, bt), "O- to %s", bt)
		assert.True(t, IsCompatible(bt, donor.BloodTypeABPos), "%s to AB+", bt)
		assert.True(t, IsCompatible(bt, bt), "%s to itself", bt)
	}
}

func TestCompatibleDonorTypes_ReturnsCopy(t *testing.T) {
	got := CompatibleDonorTypes(donor.BloodTypeABPos)
	assert.Len(t, got, 8)
	got[0] = "mutated"
	assert.Equal(t, donor.BloodTypes[0], CompatibleDonorTypes(donor.BloodTypeABPos)[0])
	assert.Empty(t, CompatibleDonorTypes("Z+"))
}
