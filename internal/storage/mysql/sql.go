package mysql

// Prefix + one "(?,...)" group per row + suffix; see UpsertProperties.
const upsertPropertiesPrefix = "INSERT INTO properties\n" +
	"  (id, location, environment, property_type, nightly_price, features, tags, min_guests, max_guests, description)\nVALUES "

const upsertPropertiesOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  location      = VALUES(location),\n" +
	"  environment   = VALUES(environment),\n" +
	"  property_type = VALUES(property_type),\n" +
	"  nightly_price = VALUES(nightly_price),\n" +
	"  features      = VALUES(features),\n" +
	"  tags          = VALUES(tags),\n" +
	"  min_guests    = VALUES(min_guests),\n" +
	"  max_guests    = VALUES(max_guests),\n" +
	"  description   = VALUES(description),\n" +
	"  updated_at    = CURRENT_TIMESTAMP\n"

const propertyColumns = `id, location, environment, property_type, nightly_price, features, tags, min_guests, max_guests, description`

const getPropertySQL = `
SELECT ` + propertyColumns + `
FROM properties
WHERE id = ?
`

// Catalog order is insertion order (seq), which matches the source file.
const listPropertiesSQL = `
SELECT ` + propertyColumns + `
FROM properties
ORDER BY seq
`

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

const insertUserSQL = `
INSERT INTO users (username, first_name, password_hash, created_at)
VALUES (?, ?, ?, ?)
`

const getUserSQL = `
SELECT username, first_name, password_hash, created_at
FROM users
WHERE username = ?
`

// Renames cascade to recommendation_runs through the foreign key.
const updateUserSQL = `
UPDATE users
SET username = ?, first_name = ?, password_hash = ?
WHERE username = ?
`

const deleteUserSQL = `DELETE FROM users WHERE username = ?`

// -----------------------------------------------------------------------------
// HISTORY
// -----------------------------------------------------------------------------

const insertRunSQL = `
INSERT INTO recommendation_runs (id, username, query, created_at)
VALUES (?, ?, ?, ?)
`

const insertItemsPrefix = "INSERT INTO recommendation_items\n  (run_id, position, property_id, fit_score, scores, property)\nVALUES "

const latestRunSQL = `
SELECT id, username, query, created_at
FROM recommendation_runs
WHERE username = ?
ORDER BY created_at DESC, id DESC
LIMIT 1
`

const runItemsSQL = `
SELECT fit_score, scores, property
FROM recommendation_items
WHERE run_id = ?
ORDER BY position
`
