// Package normalize maps raw upstream result rows into canonical finding
// shapes. Every function here is pure and total: a malformed individual
// record is dropped and counted, never propagated as an error, so upstream
// schema drift degrades gracefully instead of breaking ingestion.
package normalize

import (
	"encoding/json"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
)

// compositeAlertTypes are behavioral alert types counted separately on the
// dashboard.
var compositeAlertTypes = map[string]bool{
	"PotentiallyCompromisedAwsCredentials": true,
	"PotentiallyCompromisedAwsIdentity":    true,
	"PotentiallyCompromisedHost":           true,
	"SuspiciousActivityAwsUser":            true,
	"SuspiciousActivityHost":               true,
	"SuspiciousActivityGCP":                true,
	"SuspiciousActivityAzure":              true,
	"CompromisedAwsHost":                   true,
}

// Alerts normalizes raw alert rows. Records without an alert id are
// dropped; unrecognized severities degrade to Info.
func Alerts(raw []ports.RawRecord) ([]domain.Alert, int) {
	out := make([]domain.Alert, 0, len(raw))
	dropped := 0

	for _, rec := range raw {
		id, ok := asInt64(rec["alertId"])
		if !ok || id == 0 {
			dropped++
			continue
		}

		sev, _ := domain.ParseSeverity(asString(rec["severity"]))
		alertType := firstString(rec, "alertType", "alertName")
		title := firstString(rec, "alertName", "alertType")

		a := domain.Alert{
			AlertID:     id,
			Severity:    sev,
			Type:        alertType,
			Title:       title,
			Status:      stringOr(rec, "status", "Open"),
			CreatedTime: firstString(rec, "startTime", "createdTime"),
			Composite:   compositeAlertTypes[alertType],
		}
		if info := asMap(rec["alertInfo"]); info != nil {
			a.Description = asString(info["description"])
		}
		if derived := asMap(rec["derivedFields"]); derived != nil {
			a.Category = asString(derived["category"])
		}

		out = append(out, a)
	}
	return out, dropped
}

// Vulns normalizes raw vulnerability rows from both the host and
// container searches. Records without a vuln id are dropped. Machine tags
// are tolerated under both casings; container rows carry an image id
// instead of machine tags.
func Vulns(raw []ports.RawRecord) ([]domain.VulnFinding, int) {
	out := make([]domain.VulnFinding, 0, len(raw))
	dropped := 0

	for _, rec := range raw {
		cve := asString(rec["vulnId"])
		if cve == "" {
			dropped++
			continue
		}

		sev, _ := domain.ParseSeverity(asString(rec["severity"]))
		v := domain.VulnFinding{
			CVE:      cve,
			Severity: sev,
			Status:   stringOr(rec, "status", "Active"),
		}

		if feature := asMap(rec["featureKey"]); feature != nil {
			v.Package = asString(feature["name"])
			v.Version = asString(feature["version"])
		}
		if fix := asMap(rec["fixInfo"]); fix != nil {
			v.FixVersion = firstString(fix, "fixed_version", "fixedVersion")
		}
		if tags := asMap(rec["machineTags"]); tags != nil {
			v.Hostname = firstString(tags, "Hostname", "hostname")
			v.ExternalIP = firstString(tags, "ExternalIp", "externalIp")
			v.MachineID = firstString(tags, "InstanceId", "instanceId", "AWSInstanceId")
		}
		if v.MachineID == "" {
			v.MachineID = asString(rec["imageId"])
		}

		out = append(out, v)
	}
	return out, dropped
}

// Compliance normalizes raw compliance evaluation rows. Records carrying
// neither a policy id nor a title cannot be keyed and are dropped.
func Compliance(raw []ports.RawRecord) ([]domain.ComplianceFinding, int) {
	out := make([]domain.ComplianceFinding, 0, len(raw))
	dropped := 0

	for _, rec := range raw {
		policyID := asString(rec["id"])
		title := firstString(rec, "title", "recommendation", "recommendationTitle")
		if policyID == "" && title == "" {
			dropped++
			continue
		}
		if policyID == "" {
			policyID = title
		}

		sev, _ := domain.ParseSeverity(asString(rec["severity"]))
		f := domain.ComplianceFinding{
			PolicyID: policyID,
			Severity: sev,
			Dataset:  stringOr(rec, "dataset", "Unknown"),
			Section:  asString(rec["section"]),
			Title:    title,
			Reason:   asString(rec["reason"]),
			Resource: firstString(rec, "resource", "resourceName"),
			Region:   asString(rec["region"]),
			Status:   stringOr(rec, "status", "NonCompliant"),
		}

		// The account field arrives as either a plain string or an
		// object with accountName/accountId.
		switch acct := rec["account"].(type) {
		case string:
			f.Account = acct
		case map[string]any:
			f.Account = firstString(acct, "accountName", "accountId")
		}

		out = append(out, f)
	}
	return out, dropped
}

// Identities normalizes raw identity rows from the identities query.
// METRICS, ENTITLEMENT_COUNTS and the access-key list are tolerated as
// either objects or JSON-encoded strings; epoch-millisecond timestamps are
// converted. Records without a principal id are dropped.
func Identities(raw []ports.RawRecord) ([]domain.IdentityFinding, int) {
	out := make([]domain.IdentityFinding, 0, len(raw))
	dropped := 0

	for _, rec := range raw {
		principalID := asString(rec["PRINCIPAL_ID"])
		if principalID == "" {
			dropped++
			continue
		}

		f := domain.IdentityFinding{
			PrincipalID: principalID,
			Name:        asString(rec["NAME"]),
			Provider:    asString(rec["PROVIDER_TYPE"]),
			DomainID:    asString(rec["DOMAIN_ID"]),
			LastUsed:    epochMillis(rec["LAST_USED_TIME"]),
			Created:     epochMillis(rec["CREATED_TIME"]),
		}

		if metrics := asMap(rec["METRICS"]); metrics != nil {
			score, _ := asInt64(metrics["risk_score"])
			f.RiskScore = int(score)
			f.Severity, _ = domain.ParseSeverity(asString(metrics["risk_severity"]))
			f.RiskTags = asStringSlice(metrics["risks"])
		}

		if ent := asMap(rec["ENTITLEMENT_COUNTS"]); ent != nil {
			f.EntitlementsTotal = intField(ent, "entitlements_total_count")
			f.EntitlementsUnused = intField(ent, "entitlements_unused_count")
			f.ServicesTotal = intField(ent, "services_entitled_total_count")
			f.ServicesUnused = intField(ent, "services_unused_count")
		}

		f.AccessKeys = accessKeys(firstValue(rec, "ACCESS_KEYS_LIST", "ACCESS_KEYS"))

		out = append(out, f)
	}
	return out, dropped
}

func accessKeys(v any) []domain.AccessKey {
	items := asSlice(v)
	if items == nil {
		return nil
	}
	keys := make([]domain.AccessKey, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		keys = append(keys, domain.AccessKey{
			KeyID:     asString(m["access_key_id"]),
			Active:    asBool(m["active"]),
			LastUsed:  asString(m["last_used"]),
			Created:   asString(m["created_time"]),
			HardCoded: asBool(m["hard_coded"]),
		})
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

// --- tolerant accessors ---

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asInt64 accepts the numeric shapes JSON decoding produces.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// asMap accepts an object directly or as a JSON-encoded string.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case string:
		var out map[string]any
		if json.Unmarshal([]byte(m), &out) == nil {
			return out
		}
	}
	return nil
}

// asSlice accepts a list directly, as a JSON-encoded string, or as an
// object whose values form the list.
func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case string:
		var out []any
		if json.Unmarshal([]byte(s), &out) == nil {
			return out
		}
	case map[string]any:
		out := make([]any, 0, len(s))
		for _, item := range s {
			out = append(out, item)
		}
		return out
	}
	return nil
}

func asStringSlice(v any) []string {
	items := asSlice(v)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringOr(m map[string]any, key, fallback string) string {
	if s := asString(m[key]); s != "" {
		return s
	}
	return fallback
}

func intField(m map[string]any, key string) int {
	n, _ := asInt64(m[key])
	return int(n)
}

func epochMillis(v any) *time.Time {
	ms, ok := asInt64(v)
	if !ok || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
