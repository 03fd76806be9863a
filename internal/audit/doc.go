// Package audit records authentication events.
//
// Entries are queued by a Recorder and written serially to a Repository,
// either the audit_logs table (SQLite or PostgreSQL) or process memory.
// When a Publisher is attached, each stored entry is also published as
// JSON so other platform services can follow account activity:
//
//	rec := audit.NewRecorder(repo, logger,
//	    audit.WithMirror(mqttClient, mqtt.Topics{Prefix: "servicedesk"}.Audit, 1))
//	go rec.Run(ctx)
//
//	rec.Record(audit.Entry{Action: audit.ActionLogin, EntityType: audit.EntityCredential, EntityID: email})
package audit
