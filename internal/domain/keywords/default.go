package keywords

import "github.com/okian/sickbay/internal/domain/reliability"

// Category names used by Default.
const (
	CategoryGeneral  = "blessure"
	CategorySeverity = "gravite"
	CategoryType     = "type_blessure"
	CategoryReturn   = "retour"
)

// Default returns the canonical multilingual (French, English, Spanish) profile.
func Default() Profile {
	return Profile{
		Name: "default",
		Injury: []Category{
			{Name: CategoryGeneral, Weight: 2.0, Terms: []string{
				"blessé", "blessure", "forfait", "absent", "indisponible",
				"touché", "victime", "souffre", "douleur", "gêne", "ko", "out",
				"injured", "injury", "hurt", "pain",
				"problema", "lesión", "lesionado",
			}},
			{Name: CategorySeverity, Weight: 1.5, Terms: []string{
				"grave", "sérieux", "longue durée", "plusieurs semaines", "plusieurs mois",
				"rupture", "fracture", "déchirure", "entorse", "opération", "chirurgie", "intervention",
				"severe", "serious", "surgery", "torn", "broken",
			}},
			{Name: CategoryType, Weight: 1.2, Terms: []string{
				"musculaire", "ischio", "quadriceps", "mollet", "adducteurs",
				"hamstring", "calf", "thigh", "groin",
				"genou", "cheville", "épaule", "dos", "hanche",
				"knee", "ankle", "shoulder", "back", "hip",
				"ligament", "croisé", "lca", "lcp", "acl", "pcl",
				"commotion", "côtes", "concussion", "ribs",
			}},
			{Name: CategoryReturn, Weight: 1.0, Terms: []string{
				"retour prévu", "absent", "semaines", "mois", "jours",
				"forfait pour", "indisponible pendant",
				"expected back", "out for", "sidelined",
				"de baja", "recuperación",
			}},
		},
		SeverityCategory: CategorySeverity,
		TypeCategory:     CategoryType,
		SevereTerms: []string{
			"grave", "rupture", "fracture", "déchirure", "opération", "chirurgie",
			"severe", "torn", "surgery", "broken",
		},
		ModerateTerms: []string{
			"sérieux", "serious", "plusieurs semaines", "plusieurs mois", "longue durée", "entorse",
		},
		Availability: []AvailabilityCategory{
			{Name: "incertain", Confidence: 0.5, Terms: []string{
				"incertain", "doute", "évaluation", "tests", "examens", "décision",
				"incertitude", "attente",
				"doubtful", "questionable", "day-to-day", "game-time decision",
				"duda", "evaluación",
			}},
			{Name: "probablement_absent", Confidence: 0.2, Terms: []string{
				"très incertain", "peu de chances", "probablement forfait",
				"unlikely", "probably out", "not expected",
				"poco probable",
			}},
			{Name: "retour_imminent", Confidence: 0.8, Terms: []string{
				"de retour", "rétabli", "apte", "groupe", "reprise", "retour à l'entraînement",
				"back in training", "returned", "fit", "recovered", "available",
				"recuperado", "disponible",
			}},
			{Name: "titulaire", Confidence: 0.9, Terms: []string{
				"titulaire", "alignement", "composition", "xi de départ", "onze",
				"starting", "lineup", "starting eleven",
				"titular", "once inicial",
			}},
		},
		DurationPatterns: []string{
			`(\d+)\s+(jours?|days?|días?|dias?)`,
			`(\d+)\s+(semaines?|weeks?|semanas?)`,
			`(\d+)\s+(mois|months?|mes|meses)`,
		},
		Units: []Unit{
			{Stem: "jour", Days: 1},
			{Stem: "day", Days: 1},
			{Stem: "día", Days: 1},
			{Stem: "dia", Days: 1},
			{Stem: "semaine", Days: 7},
			{Stem: "week", Days: 7},
			{Stem: "semana", Days: 7},
			{Stem: "mois", Days: 30},
			{Stem: "month", Days: 30},
			{Stem: "mes", Days: 30},
		},
		Negation: []string{
			"pas", "non", "aucun", "sans", "ne", "ni",
			"not", "no", "neither", "nor", "without",
			"sin", "ningún",
		},
		Confirmation: []string{
			"confirmé", "officiel", "annoncé", "déclaré",
			"confirmed", "official", "announced", "stated",
			"confirmado", "oficial",
		},
		NegationWindow: 100,
		Thresholds: Thresholds{
			Confirmed: 0.75,
			Probable:  0.50,
			Doubtful:  0.30,
		},
		Reliability: reliability.Default(),
		Absence:     DefaultAbsence(),
	}
}

// DefaultAbsence returns the structured-feed filter vocabulary.
func DefaultAbsence() Absence {
	return Absence{
		RealInjury: []string{
			"injury", "injured", "blessure", "blessé",
			"fracture", "broken", "torn", "rupture", "ruptured",
			"sprain", "sprained", "strain", "strained", "dislocation", "dislocated",
			"concussion", "ankle", "knee", "hamstring", "groin", "thigh", "calf",
			"achilles", "shoulder", "hip", "back", "neck", "foot", "toe",
			"finger", "wrist", "elbow", "muscle", "ligament", "tendon", "cartilage",
			"surgery", "operation", "recovery", "rehabilitation",
			"illness", "sick", "covid", "virus", "infection",
			"pain", "ache", "sore", "inflammation",
			"acl", "mcl", "pcl", "meniscus", "patella", "fibula", "tibia", "femur",
			"metatarsal", "adductor", "abductor", "quadriceps", "gastrocnemius",
		},
		NonMedical: []string{
			"suspended", "suspension", "ban", "banned",
			"red card", "yellow card", "sent off",
			"rest", "rested", "rotation", "rotated",
			"tactical", "coach decision", "technical decision",
			"not in squad", "left out", "dropped",
			"doubtful", "doubt", "uncertain", "questionable",
			"fitness test", "late fitness test",
			"personal", "family", "compassionate",
			"international duty", "with national team",
			"lack of fitness", "fitness issues",
		},
		MissingMarker: "missing fixture",
		Severe:        []string{"fracture", "broken", "torn", "rupture", "surgery", "acl", "mcl"},
		Moderate:      []string{"sprain", "strain", "inflammation", "ligament", "meniscus"},
		Minor:         []string{"pain", "ache", "sore", "fatigue", "minor"},
	}
}
