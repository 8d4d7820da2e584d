package catalog

import "time"

type DocumentCreatedEvent struct {
	DocumentID DocumentID
	Kind       Kind
	Owner      OwnerID
	At         time.Time
}

func (e DocumentCreatedEvent) EventName() string     { return "catalog.document_created" }
func (e DocumentCreatedEvent) AggregateID() string   { return string(e.DocumentID) }
func (e DocumentCreatedEvent) OccurredAt() time.Time { return e.At }

type DocumentUpdatedEvent struct {
	DocumentID DocumentID
	Kind       Kind
	At         time.Time
}

func (e DocumentUpdatedEvent) EventName() string     { return "catalog.document_updated" }
func (e DocumentUpdatedEvent) AggregateID() string   { return string(e.DocumentID) }
func (e DocumentUpdatedEvent) OccurredAt() time.Time { return e.At }

type DocumentDeactivatedEvent struct {
	DocumentID DocumentID
	Kind       Kind
	At         time.Time
}

func (e DocumentDeactivatedEvent) EventName() string     { return "catalog.document_deactivated" }
func (e DocumentDeactivatedEvent) AggregateID() string   { return string(e.DocumentID) }
func (e DocumentDeactivatedEvent) OccurredAt() time.Time { return e.At }

type DocumentDeletedEvent struct {
	DocumentID DocumentID
	Kind       Kind
	At         time.Time
}

func (e DocumentDeletedEvent) EventName() string     { return "catalog.document_deleted" }
func (e DocumentDeletedEvent) AggregateID() string   { return string(e.DocumentID) }
func (e DocumentDeletedEvent) OccurredAt() time.Time { return e.At }
