package federation

import "sync"

// SubordinateRecord is what an entity knows about one of its subordinates: the JWKS and metadata
// it declared at registration, and the authority hints it claims.
type SubordinateRecord struct {
	EntityID         Identifier
	JWKS             map[string]interface{}
	Metadata         map[string]interface{}
	AuthorityHints   []Identifier
	CreatedAt        int64
}

// TrustMarkRecord is a Trust Mark this entity has either issued or received.
type TrustMarkRecord struct {
	ID         Identifier
	Issuer     Identifier
	Subject    Identifier
	IssuedAt   int64
	ExpiresAt  *int64
	SignedJWT  string
}

// EntityContext is the in-memory state of one Federation Entity: its identity, its authority
// hints, its subordinates, and the Trust Marks it has issued or received.
//
// This replaces the process-wide singleton the reference design uses (Entity State, KeyManager)
// with an explicit value threaded through the External Interface Layer's handlers. All mutation
// is guarded by a single mutex held only for the duration of a map/slice operation, per the
// concurrency model: reads never observe a torn state, and writes are linearizable.
type EntityContext struct {
	entityID   Identifier
	keyManager *KeyManager
	clock      Clock

	mu                 sync.Mutex
	authorityHints     []Identifier
	subordinates       map[string]SubordinateRecord
	issuedTrustMarks   []TrustMarkRecord
	receivedTrustMarks []TrustMarkRecord
	metadata           map[string]interface{}
}

// NewEntityContext constructs an EntityContext for entityID, backed by keyManager (already
// initialized) and clock.
func NewEntityContext(entityID Identifier, keyManager *KeyManager, clock Clock) *EntityContext {
	return &EntityContext{
		entityID:     entityID,
		keyManager:   keyManager,
		clock:        clock,
		subordinates: make(map[string]SubordinateRecord),
		metadata:     make(map[string]interface{}),
	}
}

// EntityID returns this entity's identifier.
func (c *EntityContext) EntityID() Identifier {
	return c.entityID
}

// KeyManager returns the key manager backing this context.
func (c *EntityContext) KeyManager() *KeyManager {
	return c.keyManager
}

// Clock returns the clock backing this context.
func (c *EntityContext) Clock() Clock {
	return c.clock
}

// AddSubordinate inserts or updates (upserts) a subordinate record, keyed by entity ID. The
// registrar injects this entity's own ID into the record's declared authority hints if absent.
func (c *EntityContext) AddSubordinate(record SubordinateRecord) {
	hasOwnHint := false
	for _, hint := range record.AuthorityHints {
		if hint.Equals(c.entityID) {
			hasOwnHint = true
			break
		}
	}
	if !hasOwnHint {
		record.AuthorityHints = append(append([]Identifier{}, record.AuthorityHints...), c.entityID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subordinates[record.EntityID.String()] = record
}

// RemoveSubordinate deletes the subordinate record for entityID, if present, and reports whether
// anything was removed.
func (c *EntityContext) RemoveSubordinate(entityID Identifier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entityID.String()
	if _, ok := c.subordinates[key]; !ok {
		return false
	}
	delete(c.subordinates, key)
	return true
}

// GetSubordinate returns a copy of the subordinate record for entityID, if present.
func (c *EntityContext) GetSubordinate(entityID Identifier) (SubordinateRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.subordinates[entityID.String()]
	return record, ok
}

// ListSubordinates returns a snapshot of all subordinate records.
func (c *EntityContext) ListSubordinates() []SubordinateRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]SubordinateRecord, 0, len(c.subordinates))
	for _, record := range c.subordinates {
		records = append(records, record)
	}
	return records
}

// AddAuthorityHint appends a superior to this entity's declared authority hints, if not already
// present.
func (c *EntityContext) AddAuthorityHint(hint Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.authorityHints {
		if existing.Equals(hint) {
			return
		}
	}
	c.authorityHints = append(c.authorityHints, hint)
}

// SetAuthorityHints replaces this entity's declared authority hints wholesale.
func (c *EntityContext) SetAuthorityHints(hints []Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.authorityHints = append([]Identifier{}, hints...)
}

// AuthorityHints returns a snapshot of this entity's declared authority hints.
func (c *EntityContext) AuthorityHints() []Identifier {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Identifier{}, c.authorityHints...)
}

// AddIssuedTrustMark records a Trust Mark this entity has minted.
func (c *EntityContext) AddIssuedTrustMark(record TrustMarkRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.issuedTrustMarks = append(c.issuedTrustMarks, record)
}

// RemoveIssuedTrustMark deletes the issued Trust Mark record with the given ID, and reports
// whether anything was removed. If multiple records share an ID, all are removed.
func (c *EntityContext) RemoveIssuedTrustMark(id Identifier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	kept := c.issuedTrustMarks[:0]
	for _, record := range c.issuedTrustMarks {
		if record.ID.Equals(id) {
			removed = true
			continue
		}
		kept = append(kept, record)
	}
	c.issuedTrustMarks = kept
	return removed
}

// IssuedTrustMarks returns a snapshot of Trust Marks this entity has issued.
func (c *EntityContext) IssuedTrustMarks() []TrustMarkRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]TrustMarkRecord{}, c.issuedTrustMarks...)
}

// GetIssuedTrustMark returns the issued Trust Mark record with the given ID, if present.
func (c *EntityContext) GetIssuedTrustMark(id Identifier) (TrustMarkRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range c.issuedTrustMarks {
		if record.ID.Equals(id) {
			return record, true
		}
	}
	return TrustMarkRecord{}, false
}

// AddReceivedTrustMark records a Trust Mark issued to this entity by another.
func (c *EntityContext) AddReceivedTrustMark(record TrustMarkRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.receivedTrustMarks = append(c.receivedTrustMarks, record)
}

// ReceivedTrustMarks returns a snapshot of Trust Marks issued to this entity by others.
func (c *EntityContext) ReceivedTrustMarks() []TrustMarkRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]TrustMarkRecord{}, c.receivedTrustMarks...)
}

// Metadata returns a snapshot of this entity's declared metadata.
func (c *EntityContext) Metadata() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.metadata) == 0 {
		return nil
	}
	snapshot := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		snapshot[k] = v
	}
	return snapshot
}

// SetMetadata replaces this entity's declared metadata wholesale.
func (c *EntityContext) SetMetadata(metadata map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metadata = make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		c.metadata[k] = v
	}
}
