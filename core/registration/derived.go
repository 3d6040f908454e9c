package registration

import "strconv"

// derivedRule recomputes dependent fields after a write to one of its triggers.
type derivedRule struct {
	name     string
	triggers []string
	apply    func(Record) Record
}

var (
	presentAddressPaths = []string{
		"address.houseNo", "address.streetName", "address.city", "address.state", "address.pinCode",
	}

	derivedRules = []derivedRule{
		{name: "age", triggers: []string{dobPath}, apply: deriveAge},
		{name: "permanentAddress", triggers: append(presentAddressPaths, mirrorFlagPath), apply: mirrorAddress},
	}

	// derivedPaths cannot be edited directly.
	derivedPaths = map[string]bool{agePath: true}

	rulesByTrigger = func() map[string][]derivedRule {
		byTrigger := make(map[string][]derivedRule)
		for _, rule := range derivedRules {
			for _, p := range rule.triggers {
				byTrigger[p] = append(byTrigger[p], rule)
			}
		}
		return byTrigger
	}()
)

// applyDerived runs every rule triggered by a write to path.
func applyDerived(rec Record, path string) Record {
	for _, rule := range rulesByTrigger[path] {
		rec = rule.apply(rec)
	}
	return rec
}

// deriveAge sets Age to the completed years since DateOfBirth, or "" when it is not a past date.
func deriveAge(rec Record) Record {
	rec.Age = ""
	dob, ok := parseDate(rec.DateOfBirth)
	if !ok {
		return rec
	}
	now := today()
	if dob.After(now) {
		return rec
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	rec.Age = strconv.Itoa(years)
	return rec
}

// mirrorAddress copies the present address into the permanent one while the flag is set.
func mirrorAddress(rec Record) Record {
	if !rec.Address.SameAsPresentAddress {
		return rec
	}
	rec.Address.PermanentHouseNo = rec.Address.HouseNo
	rec.Address.PermanentStreetName = rec.Address.StreetName
	rec.Address.PermanentCity = rec.Address.City
	rec.Address.PermanentState = rec.Address.State
	return rec
}
