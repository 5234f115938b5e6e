package transfusion

import "github.com/bloodbank/bloodbank/internal/domain/donor"

// redCellCompat maps a recipient blood type to the donor types whose red
// cells it can receive.
var redCellCompat = map[string][]string{
	donor.BloodTypeONeg:  {donor.BloodTypeONeg},
	donor.BloodTypeOPos:  {donor.BloodTypeONeg, donor.BloodTypeOPos},
	donor.BloodTypeANeg:  {donor.BloodTypeONeg, donor.BloodTypeANeg},
	donor.BloodTypeAPos:  {donor.BloodTypeONeg, donor.BloodTypeOPos, donor.BloodTypeANeg, donor.BloodTypeAPos},
	donor.BloodTypeBNeg:  {donor.BloodTypeONeg, donor.BloodTypeBNeg},
	donor.BloodTypeBPos:  {donor.BloodTypeONeg, donor.BloodTypeOPos, donor.BloodTypeBNeg, donor.BloodTypeBPos},
	donor.BloodTypeABNeg: {donor.BloodTypeONeg, donor.BloodTypeANeg, donor.BloodTypeBNeg, donor.BloodTypeABNeg},
	donor.BloodTypeABPos: donor.BloodTypes,
}

// IsCompatible reports whether red cells of donorType may be transfused to
// a recipient of recipientType. Unknown types are never compatible.
func IsCompatible(donorType, recipientType string) bool {
	for _, t := range redCellCompat[recipientType] {
		if t == donorType {
			return true
		}
	}
	return false
}

// CompatibleDonorTypes lists the donor types recipientType can receive.
func CompatibleDonorTypes(recipientType string) []string {
	return append([]string(nil), redCellCompat[recipientType]...)
}
