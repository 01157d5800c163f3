// Package formtest provides canned answer maps for tests across the module.
package formtest

// Valid returns a complete answer map that passes the full questionnaire
// schema. Every injury-assessment gate is answered "no", so all the
// conditional detail groups stay hidden.
func Valid() map[string]string {
	return map[string]string{
		"fullName":    "Jordan Avery",
		"email":       "jordan.avery@example.com",
		"phone":       "555-012-3456",
		"address":     "12 Harbor Lane",
		"city":        "Springfield",
		"state":       "IL",
		"zipCode":     "62704",
		"dateOfBirth": "1985-06-15",

		"accidentDate":        "2024-11-02",
		"accidentLocation":    "Main St and 5th Ave intersection",
		"accidentDescription": "Rear-ended while stopped at a red light.",
		"policeReportFiled":   "no",
		"faultParty":          "other",

		"vehicleLocation":  "driver",
		"vehicleType":      "sedan",
		"vehicleDamage":    "moderate",
		"impactLocation":   "rear",
		"otherVehicleType": "suv",

		"immediatePain":     "yes",
		"currentPain":       "yes",
		"injuryDescription": "Stiffness and soreness across the upper back.",
		"medicalTreatment":  "urgent-care",
		"ongoingTreatment":  "no",
		"neckPain":          "no",

		"shoulderPain": "no",
		"backPain":     "no",

		"headache":      "no",
		"travelAnxiety": "no",

		"bruising":    "no",
		"otherInjury": "no",

		"treatmentAtScene": "no",
		"wentToHospital":   "no",
		"wentToGp":         "no",

		"sleepDisturbance":   "no",
		"domesticEffect":     "no",
		"sportLeisureEffect": "no",
		"socialLifeEffect":   "no",

		"previousAccident": "no",
		"anythingElse":     "no",

		"whoLivesWithYou":  "family",
		"witnesses":        "no",
		"insuranceCompany": "Acme Mutual",
		"claimFiled":       "pending",
	}
}
