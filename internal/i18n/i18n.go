package i18n

import "fmt"

// Lang selects the message catalog.
type Lang string

const (
	RO Lang = "ro"
	EN Lang = "en"
)

// Valid reports whether the language is supported.
func (l Lang) Valid() bool { return l == RO || l == EN }

var catalogs = map[Lang]map[string]string{
	EN: {
		"notify.doc_expired":        "%s for %s expired on %s",
		"notify.doc_expiring":       "%s for %s expires on %s",
		"notify.vehicle_down":       "vehicle %s is %s and is assigned to campaign %q",
		"notify.driver_on_leave":    "driver %s has leave overlapping campaign %q",
		"notify.campaign_no_fleet":  "campaign %q has no vehicle assigned",
		"notify.campaign_no_driver": "campaign %q has no driver assigned",
		"notify.campaign_no_spots":  "campaign %q has no spots",
		"mail.subject":              "MobiPlan alerts: %d new notifications",
	},
	RO: {
		"notify.doc_expired":        "%s pentru %s a expirat la %s",
		"notify.doc_expiring":       "%s pentru %s expiră la %s",
		"notify.vehicle_down":       "vehiculul %s este %s și este alocat campaniei %q",
		"notify.driver_on_leave":    "șoferul %s are concediu suprapus cu campania %q",
		"notify.campaign_no_fleet":  "campania %q nu are vehicul alocat",
		"notify.campaign_no_driver": "campania %q nu are șofer alocat",
		"notify.campaign_no_spots":  "campania %q nu are spoturi",
		"mail.subject":              "Alerte MobiPlan: %d notificări noi",
	},
}

// T formats a catalog message in the given language, falling back to
// English for unknown languages and to the bare key for unknown messages.
func T(lang Lang, key string, args ...any) string {
	cat, ok := catalogs[lang]
	if !ok {
		cat = catalogs[EN]
	}
	msg, ok := cat[key]
	if !ok {
		if msg, ok = catalogs[EN][key]; !ok {
			return key
		}
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
