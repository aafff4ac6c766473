package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Key families for refresh-token records. The lookup key is
// authoritative: a token absent there is invalid regardless of list
// membership. The per-user key and the token list only exist to make
// enumeration and bulk revocation O(1)-ish.
const (
	lookupKeyPrefix = "refresh_token_lookup:" // + tokenValue
	byUserKeyPrefix = "refresh_token:"        // + userId + ":" + tokenValue
	tokenListPrefix = "user_tokens:"          // + userId
)

// Record is the cache-resident state of one live refresh token.
type Record struct {
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshStore persists refresh-token records in a TTL cache. The
// three writes in Save are not a distributed transaction; a crash
// mid-sequence leaves partial state that the TTL self-heals (an
// orphaned lookup entry expires on its own, a token missing from the
// list is merely unreachable for bulk revoke).
type RefreshStore struct {
	kv  KV
	ttl time.Duration
}

func NewRefreshStore(kv KV, ttl time.Duration) *RefreshStore {
	return &RefreshStore{kv: kv, ttl: ttl}
}

func lookupKey(token string) string { return lookupKeyPrefix + token }

func byUserKey(userID uint64, tok string) string {
	return fmt.Sprintf("%s%d:%s", byUserKeyPrefix, userID, tok)
}

func tokenListKey(userID uint64) string { return fmt.Sprintf("%s%d", tokenListPrefix, userID) }

// Save writes the record under all three key families with the
// configured TTL and appends the token value to the user's list.
func (s *RefreshStore) Save(ctx context.Context, token string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, lookupKey(token), string(data), s.ttl); err != nil {
		return fmt.Errorf("save lookup key: %w", err)
	}
	if err := s.kv.Set(ctx, byUserKey(rec.UserID, token), string(data), s.ttl); err != nil {
		return fmt.Errorf("save user key: %w", err)
	}
	tokens, err := s.userTokens(ctx, rec.UserID)
	if err != nil {
		return err
	}
	tokens = append(tokens, token)
	return s.saveTokenList(ctx, rec.UserID, tokens)
}

// Lookup resolves a token value to its record via the authoritative
// lookup key. ErrNotFound covers TTL expiry and prior revocation
// alike.
func (s *RefreshStore) Lookup(ctx context.Context, token string) (Record, error) {
	raw, err := s.kv.Get(ctx, lookupKey(token))
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode refresh record: %w", err)
	}
	return rec, nil
}

// DeleteLookup removes just the lookup entry. Used for lazy cleanup
// when the referenced user no longer exists.
func (s *RefreshStore) DeleteLookup(ctx context.Context, token string) error {
	return s.kv.Del(ctx, lookupKey(token))
}

// Revoke deletes one token: both record keys plus its list entry.
// Returns ErrNotFound when the lookup record was already absent so a
// double revoke is distinguishable from success.
func (s *RefreshStore) Revoke(ctx context.Context, token string, userID uint64) error {
	if _, err := s.kv.Get(ctx, lookupKey(token)); err != nil {
		return err
	}
	if err := s.kv.Del(ctx, lookupKey(token), byUserKey(userID, token)); err != nil {
		return err
	}
	tokens, err := s.userTokens(ctx, userID)
	if err != nil {
		return err
	}
	kept := tokens[:0]
	for _, t := range tokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		// Drop the list key entirely instead of storing an empty list.
		return s.kv.Del(ctx, tokenListKey(userID))
	}
	return s.saveTokenList(ctx, userID, kept)
}

// RevokeAll deletes every live token of a user along with the list
// key. A missing or empty list is a successful no-op.
func (s *RefreshStore) RevokeAll(ctx context.Context, userID uint64) error {
	tokens, err := s.userTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, lookupKey(t), byUserKey(userID, t))
	}
	keys = append(keys, tokenListKey(userID))
	return s.kv.Del(ctx, keys...)
}

// UserTokens lists the user's live token values. Tokens revoked
// concurrently may still appear; Lookup stays authoritative.
func (s *RefreshStore) UserTokens(ctx context.Context, userID uint64) ([]string, error) {
	return s.userTokens(ctx, userID)
}

func (s *RefreshStore) userTokens(ctx context.Context, userID uint64) ([]string, error) {
	raw, err := s.kv.Get(ctx, tokenListKey(userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	return tokens, nil
}

func (s *RefreshStore) saveTokenList(ctx context.Context, userID uint64, tokens []string) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, tokenListKey(userID), string(data), s.ttl)
}
