package dedupe

import (
	"context"
	"fmt"
	"log"
	"sort"

	"leadscout/identity"
	"leadscout/models"
	"leadscout/storage"
)

// Report summarizes one dedupe pass.
type Report struct {
	Scanned   int
	Cleaned   int
	Groups    int
	Removed   int
	Reclaimed int // owners adopted by survivors
}

// ScanAndMerge is the weekly maintenance pass: re-normalize stored addresses
// and owner names, then collapse leads sharing the same weak identity key
// (canonical address + owner name). The most recently updated lead survives;
// on a tie the oldest row (lowest id) does, so repeated passes always pick
// the same survivor. A survivor without an owner adopts one from the leads it
// absorbs. Running it twice in a row is a no-op.
func ScanAndMerge(ctx context.Context, store storage.Store) (*Report, error) {
	leads, err := store.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}

	report := &Report{Scanned: len(leads)}

	if err := clean(ctx, store, leads, report); err != nil {
		return report, err
	}

	groups := make(map[string][]*models.Lead)
	for i := range leads {
		lead := &leads[i]
		ownerName := ""
		if lead.Owner != nil {
			ownerName = lead.Owner.Name
		}
		key := identity.WeakKey(lead.Address, ownerName)
		groups[key] = append(groups[key], lead)
	}

	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		report.Groups++

		sort.Slice(group, func(i, j int) bool {
			if !group[i].LastUpdated.Equal(group[j].LastUpdated) {
				return group[i].LastUpdated.After(group[j].LastUpdated)
			}
			return group[i].ID < group[j].ID
		})

		survivor := group[0]
		for _, dup := range group[1:] {
			if survivor.OwnerID == nil && dup.OwnerID != nil {
				if err := store.UpdateLeadOwner(ctx, survivor.ID, dup.OwnerID); err != nil {
					return report, fmt.Errorf("adopting owner for lead %d: %w", survivor.ID, err)
				}
				survivor.OwnerID = dup.OwnerID
				report.Reclaimed++
			}
			if err := store.DeleteLead(ctx, dup.ID); err != nil {
				return report, fmt.Errorf("deleting duplicate %d: %w", dup.ID, err)
			}
			report.Removed++
		}
		log.Printf("dedupe: key %q collapsed %d leads into #%d", key, len(group), survivor.ID)
	}

	log.Printf("dedupe: scanned %d, cleaned %d, removed %d duplicates in %d groups",
		report.Scanned, report.Cleaned, report.Removed, report.Groups)
	return report, nil
}

// clean re-normalizes stored addresses and owner names in place. Leads saved
// before a normalization rule changed would otherwise never group together.
func clean(ctx context.Context, store storage.Store, leads []models.Lead, report *Report) error {
	for i := range leads {
		lead := &leads[i]

		if canonical := identity.NormalizeAddress(lead.Address); canonical != lead.Address {
			if err := store.UpdateLeadAddress(ctx, lead.ID, canonical); err != nil {
				return fmt.Errorf("cleaning address for lead %d: %w", lead.ID, err)
			}
			lead.Address = canonical
			report.Cleaned++
		}

		if lead.Owner == nil {
			continue
		}
		if canonical := identity.NormalizeOwnerName(lead.Owner.Name); canonical != lead.Owner.Name {
			if err := store.UpdateOwnerName(ctx, lead.Owner.ID, canonical); err != nil {
				return fmt.Errorf("cleaning owner %d: %w", lead.Owner.ID, err)
			}
			lead.Owner.Name = canonical
			report.Cleaned++
		}
	}
	return nil
}
