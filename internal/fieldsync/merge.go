package fieldsync

import "fieldsync/internal/model"

// MergeLocalPending builds the instant view of a location from its cached
// records and the pending queue. Cached copies win; pending records for the
// location are only added when their id is missing. Duplicate ids in the
// cache keep their first copy.
func MergeLocalPending(location string, local, pending []model.InspectionRecord) []model.InspectionRecord {
	seen := make(map[string]bool, len(local))
	merged := make([]model.InspectionRecord, 0, len(local)+len(pending))

	for _, r := range local {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		merged = append(merged, r.Clone())
	}
	for _, r := range pending {
		if r.ID == "" || r.SheetName != location || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		merged = append(merged, r.Clone())
	}

	model.SortByCreatedAt(merged)
	return merged
}

// MergeRemotePending overlays the pending queue onto a fresh remote set.
// Remote duplicates resolve to the later copy, and a pending record for the
// location always replaces the remote copy with the same id. The order of
// first appearance is kept before sorting so equal timestamps stay stable.
func MergeRemotePending(location string, remote, pending []model.InspectionRecord) []model.InspectionRecord {
	index := make(map[string]int, len(remote)+len(pending))
	merged := make([]model.InspectionRecord, 0, len(remote)+len(pending))

	put := func(r model.InspectionRecord) {
		if i, ok := index[r.ID]; ok {
			merged[i] = r.Clone()
			return
		}
		index[r.ID] = len(merged)
		merged = append(merged, r.Clone())
	}

	for _, r := range remote {
		if r.ID != "" {
			put(r)
		}
	}
	for _, r := range pending {
		if r.ID != "" && r.SheetName == location {
			put(r)
		}
	}

	model.SortByCreatedAt(merged)
	return merged
}

// upsert replaces the record with r's id or appends r, then sorts.
// It returns a new slice and r's index in it.
func upsert(records []model.InspectionRecord, r model.InspectionRecord) ([]model.InspectionRecord, int) {
	out := make([]model.InspectionRecord, 0, len(records)+1)
	replaced := false
	for _, existing := range records {
		if existing.ID == r.ID {
			out = append(out, r)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, r)
	}
	model.SortByCreatedAt(out)
	return out, indexOf(out, r.ID)
}

func indexOf(records []model.InspectionRecord, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
