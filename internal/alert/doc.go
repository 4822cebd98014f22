// Package alert models the Alertmanager webhook payload (schema version 4)
// and validates it on receipt.
//
// Parse(body) is pure: it decodes the JSON, rejects bodies whose group status
// is missing or unknown or whose fields have the wrong JSON types, ignores
// unknown fields, and normalizes nil collections so handlers never see a nil
// alerts slice or label map.
package alert
