package metaapi

import (
	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/metadata"
)

// Record is one element of the array returned by the /metadata operation.
// Multi-valued fields use the bracketed "Name [scheme:value ...]" notation
// joined with "; ".
type Record struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Editor    string `json:"editor"`
	PubDate   string `json:"pub_date"`
	Date      string `json:"date"`
	Venue     string `json:"venue"`
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	Page      string `json:"page"`
	Type      string `json:"type"`
	Publisher string `json:"publisher"`
}

// toMetadata converts a record. The canonical id is the record's OMID, or
// its first identifier when it carries none.
func (r *Record) toMetadata() domain.ResourceMetadata {
	ids := metadata.ParseIdentifiers(r.ID)

	md := domain.ResourceMetadata{
		Identifiers: ids,
		Title:       metadata.CleanText(r.Title),
		Authors:     metadata.ParseAgents(r.Author),
		Editors:     metadata.ParseAgents(r.Editor),
		PubDate:     metadata.CleanText(r.PubDate),
		Venue:       metadata.ParseVenue(r.Venue),
		Volume:      metadata.CleanText(r.Volume),
		Issue:       metadata.CleanText(r.Issue),
		Page:        metadata.CleanText(r.Page),
		Publisher:   metadata.CleanText(r.Publisher),
		Type:        metadata.CleanText(r.Type),
	}
	if md.PubDate == "" {
		md.PubDate = metadata.CleanText(r.Date)
	}

	for _, id := range ids {
		if id.Scheme == domain.SchemeOMID {
			md.ID = id
			break
		}
	}
	if md.ID.IsZero() && len(ids) > 0 {
		md.ID = ids[0]
	}
	return md
}
