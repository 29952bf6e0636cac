package fusion

// recommendations is a deterministic rule table keyed on the risk level plus
// which domains carried indicators. Wording stays qualified: findings are
// phrased as what the evidence suggests, never as proof.
func recommendations(a Assessment) []string {
	recs := make([]string, 0, 4)

	if a.AllSourcesFailed {
		return []string{
			"No intelligence source could be reached; treat the subject as unverified and retry the investigation before making a decision",
		}
	}

	switch a.Level {
	case LevelCritical:
		recs = append(recs, "Evidence strongly indicates elevated risk; recommend declining engagement pending manual review")
	case LevelHigh:
		recs = append(recs, "Available data suggests significant risk; recommend enhanced due diligence before proceeding")
	case LevelMedium:
		recs = append(recs, "Some risk signals observed; recommend additional verification of the subject")
	default:
		recs = append(recs, "Collected data suggests no significant risk signals; standard precautions apply")
	}

	if a.Confidence < 0.5 {
		recs = append(recs, "Limited data was available for this assessment; consider re-running at a deeper investigation level")
	}

	for _, ds := range a.DomainScores {
		if len(ds.Indicators) == 0 {
			continue
		}
		switch ds.Domain {
		case DomainCompliance:
			recs = append(recs, "Screen the subject against current sanctions and PEP lists before any transaction")
		case DomainFinancial:
			recs = append(recs, "Breach exposure was reported; recommend credential rotation and payment-fraud checks")
		case DomainThreat:
			recs = append(recs, "Active abuse signals were reported; recommend blocking automated interactions from this subject")
		case DomainIdentity:
			recs = append(recs, "Identity signals could not be fully corroborated; recommend independent identity verification")
		case DomainDigital:
			recs = append(recs, "Technical footprint shows risk markers; recommend sandboxed handling of any linked content")
		}
	}

	return recs
}
