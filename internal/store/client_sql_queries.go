// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

const (
	kvTable = "kv_records"

	getRecord = `
		SELECT record_value
		FROM kv_records
		WHERE record_key = ?;`

	upsertRecord = `
		INSERT INTO kv_records (
			record_key,
			record_value,
			updated_at
		) VALUES (?, ?, ?)
		ON CONFLICT (record_key) DO UPDATE SET
			record_value = excluded.record_value,
			updated_at   = excluded.updated_at;`

	deleteRecord = `
		DELETE FROM kv_records
		WHERE record_key = ?;`
)
