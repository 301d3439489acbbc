package dao

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinvault/recordstore/metadata/models"
)

// nowUTC returns the current instant normalized the way every transaction
// time is stored: UTC, microsecond precision.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// normalizeTS coerces a caller supplied timestamp into stored form so that
// comparisons behave identically on both supported engines.
func normalizeTS(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// isDeadlock reports whether err is a transaction abort from the storage
// engine's deadlock or busy detection. Callers restart the transaction.
func isDeadlock(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213
	}
	msg := err.Error()
	return strings.Contains(msg, "Deadlock") || strings.Contains(msg, "database is locked")
}

// isUniqueViolation reports whether err is a duplicate-key constraint
// violation from either supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// folderClosureInTransaction computes the set of hierarchy edges reachable
// from rootID over the live edge relation. The walk is an explicit worklist
// so that a cycle or a multi-parent edge is detected instead of recursing
// forever on malformed data.
func folderClosureInTransaction(tx *sqlx.Tx, rootID uuid.UUID) ([]models.FolderHierarchy, error) {
	visited := map[uuid.UUID]bool{rootID: true}
	frontier := []uuid.UUID{rootID}
	var edges []models.FolderHierarchy

	for len(frontier) > 0 {
		query, args, err := sqlx.In(`
    select parent_folder, child_folder, in_contribution, sys_transaction
    from folder_hierarchy where parent_folder in (?)`, frontier)
		if err != nil {
			return nil, fmt.Errorf("building closure query: %w", err)
		}
		var rows []models.FolderHierarchy
		if err := tx.Select(&rows, query, args...); err != nil {
			return nil, fmt.Errorf("selecting hierarchy edges: %w", err)
		}
		var next []uuid.UUID
		for _, e := range rows {
			if visited[e.ChildFolder] {
				return nil, fmt.Errorf("folder %s reached twice walking hierarchy from %s: %w", e.ChildFolder, rootID, ErrCorruptHierarchy)
			}
			visited[e.ChildFolder] = true
			next = append(next, e.ChildFolder)
			edges = append(edges, e)
		}
		frontier = next
	}
	return edges, nil
}

// loadFolderRowsInTransaction fetches the live folder rows for the given ids.
func loadFolderRowsInTransaction(tx *sqlx.Tx, ids []uuid.UUID) (map[uuid.UUID]models.Folder, error) {
	out := make(map[uuid.UUID]models.Folder, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
    select id, in_contribution, name, archetype_node_id, active, details,
           sys_transaction, sys_period_lower, sys_period_upper
    from folder where id in (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building folder load query: %w", err)
	}
	var rows []models.Folder
	if err := tx.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("selecting folder rows: %w", err)
	}
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

// loadFolderItemsInTransaction returns the object references attached to a
// folder under the given contribution.
func loadFolderItemsInTransaction(tx *sqlx.Tx, folderID, inContribution uuid.UUID) ([]models.ObjectRef, error) {
	var items []models.ObjectRef
	query := `
    select o.id, o.id_namespace, o.ref_type, o.in_contribution, o.sys_transaction
    from folder_items fi
        inner join object_ref o
            on o.id = fi.object_ref_id and o.in_contribution = fi.in_contribution
    where fi.folder_id = ? and fi.in_contribution = ?
    order by o.id`
	if err := tx.Select(&items, query, folderID, inContribution); err != nil {
		return nil, fmt.Errorf("selecting folder items: %w", err)
	}
	return items, nil
}

// contributionExistsInTransaction reports whether a contribution row exists.
func contributionExistsInTransaction(tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	var count int
	if err := tx.Get(&count, `select count(*) from contribution where id = ?`, id); err != nil {
		return false, err
	}
	return count > 0, nil
}

// computeVersionAt turns a history count and the current row's transaction
// time (nil when no current row exists) into an ordinal version number.
func computeVersionAt(histCountAtOrBefore int, currentTS *time.Time, at time.Time) (int, error) {
	version := histCountAtOrBefore
	if currentTS != nil && !at.Before(*currentTS) {
		version++
	}
	if version <= 0 {
		return 0, ErrNoVersionAtTime
	}
	return version, nil
}

// edgeRow is a hierarchy edge drawn from the live or the history relation.
type edgeRow struct {
	models.FolderHierarchy
	// Src is 0 for the live relation, 1 for history. History rows are
	// physically inserted at archive time, so on an equal transaction
	// time the history row is the more recently written one and wins.
	Src int `db:"src"`
}

// historicalEdgesInTransaction reconstructs the hierarchy edge set effective
// at the given instant: live and history edges recorded at or before the
// instant, reduced per (parent, child) pair by recency, then reduced again
// per parent so that only the parent's most recent subtree version remains.
func historicalEdgesInTransaction(tx *sqlx.Tx, at time.Time) (map[uuid.UUID][]models.FolderHierarchy, error) {
	var rows []edgeRow
	query := `
    select parent_folder, child_folder, in_contribution, sys_transaction, 0 as src
    from folder_hierarchy where sys_transaction <= ?
    union all
    select parent_folder, child_folder, in_contribution, sys_transaction, 1 as src
    from folder_hierarchy_history where sys_transaction <= ?`
	if err := tx.Select(&rows, query, at, at); err != nil {
		return nil, fmt.Errorf("selecting historical hierarchy edges: %w", err)
	}
	return reduceEdgeRows(rows), nil
}

func reduceEdgeRows(rows []edgeRow) map[uuid.UUID][]models.FolderHierarchy {
	type pair struct{ parent, child uuid.UUID }

	// per-pair recency: a re-recorded edge supersedes, never accumulates
	byPair := make(map[pair]edgeRow)
	for _, r := range rows {
		key := pair{r.ParentFolder, r.ChildFolder}
		best, ok := byPair[key]
		if !ok || r.SysTransaction.After(best.SysTransaction) ||
			(r.SysTransaction.Equal(best.SysTransaction) && r.Src > best.Src) {
			byPair[key] = r
		}
	}

	// per-parent recency: only edges from the parent's latest recorded
	// transaction describe its children at this instant
	latest := make(map[uuid.UUID]time.Time)
	for _, r := range byPair {
		if ts, ok := latest[r.ParentFolder]; !ok || r.SysTransaction.After(ts) {
			latest[r.ParentFolder] = r.SysTransaction
		}
	}
	out := make(map[uuid.UUID][]models.FolderHierarchy)
	for _, r := range byPair {
		if r.SysTransaction.Equal(latest[r.ParentFolder]) {
			out[r.ParentFolder] = append(out[r.ParentFolder], r.FolderHierarchy)
		}
	}
	return out
}

// folderRowAt is a folder row drawn from the live or the history relation.
type folderRowAt struct {
	models.Folder
	Src int `db:"src"`
}

// resolveFolderRowAtInTransaction returns the folder row effective at the
// given instant, resolving supersession by recency with the history row
// preferred on an equal transaction time.
func resolveFolderRowAtInTransaction(tx *sqlx.Tx, id uuid.UUID, at time.Time) (models.Folder, bool, error) {
	var rows []folderRowAt
	query := `
    select id, in_contribution, name, archetype_node_id, active, details,
           sys_transaction, sys_period_lower, sys_period_upper, 0 as src
    from folder where id = ? and sys_transaction <= ?
    union all
    select id, in_contribution, name, archetype_node_id, active, details,
           sys_transaction, sys_period_lower, sys_period_upper, 1 as src
    from folder_history where id = ? and sys_transaction <= ?`
	if err := tx.Select(&rows, query, id, at, id, at); err != nil {
		return models.Folder{}, false, fmt.Errorf("resolving folder row at time: %w", err)
	}
	if len(rows) == 0 {
		return models.Folder{}, false, nil
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.SysTransaction.After(best.SysTransaction) ||
			(r.SysTransaction.Equal(best.SysTransaction) && r.Src > best.Src) {
			best = r
		}
	}
	return best.Folder, true, nil
}

// historicalItemsInTransaction returns the object references attached to a
// folder under the given contribution, whether the rows are still live or
// have been archived since.
func historicalItemsInTransaction(tx *sqlx.Tx, folderID, inContribution uuid.UUID) ([]models.ObjectRef, error) {
	var items []models.ObjectRef
	query := `
    select o.id, o.id_namespace, o.ref_type, o.in_contribution, o.sys_transaction
    from (
        select folder_id, object_ref_id, in_contribution from folder_items
        union
        select folder_id, object_ref_id, in_contribution from folder_items_history
    ) fi
        inner join (
            select id, id_namespace, ref_type, in_contribution, sys_transaction from object_ref
            union
            select id, id_namespace, ref_type, in_contribution, sys_transaction from object_ref_history
        ) o on o.id = fi.object_ref_id and o.in_contribution = fi.in_contribution
    where fi.folder_id = ? and fi.in_contribution = ?
    order by o.id`
	if err := tx.Select(&items, query, folderID, inContribution); err != nil {
		return nil, fmt.Errorf("selecting historical folder items: %w", err)
	}
	return items, nil
}

// getOrCreatePartyInTransaction resolves an external subject reference to a
// stable party id, creating the row on first sight.
func getOrCreatePartyInTransaction(tx *sqlx.Tx, ref models.PartyRef) (uuid.UUID, error) {
	if ref.ID == "" {
		return uuid.Nil, fmt.Errorf("%w: subject external ref id is missing", ErrInvalidArgument)
	}
	var party models.PartyIdentified
	err := tx.Get(&party, `
    select id, name, external_ref_id, external_ref_namespace
    from party_identified
    where external_ref_id = ? and external_ref_namespace = ?`, ref.ID, ref.Namespace)
	if err == nil {
		return party.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("selecting party: %w", err)
	}

	id := uuid.New()
	var name models.NullString
	if ref.Name != "" {
		name = models.ToNullString(ref.Name)
	}
	_, err = tx.Exec(`
    insert into party_identified (id, name, external_ref_id, external_ref_namespace)
    values (?, ?, ?, ?)`, id, name, ref.ID, ref.Namespace)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting party: %w", err)
	}
	return id, nil
}
