// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package store provides the certificate and CRL stores consulted by the
// path validator.
//
// Three implementations are available:
//
//   - [MemoryStore]: certificates and CRLs held in memory, the usual trust store.
//   - [LRUCache]: a bounded in-memory CRL cache with LRU eviction, expiry
//     cleanup and hit/miss metrics.
//   - [BoltCache]: a CRL cache persisted in a bbolt database so fetched CRLs
//     survive process restarts.
//
// All of them implement [CRLCache], so online revocation checks can write
// freshly fetched and verified CRLs back into them.
//
// Example usage:
//
//	roots := store.NewMemoryStoreX509(rootCert)
//	cache := store.NewLRUCache(store.LRUConfig{MaxSize: 100}, nil)
//	result, err := validate.Validate(ctx, certs, restrictions,
//		[]store.Store{roots, cache}, "example.com", x509chain.UsageTLSServerAuth,
//		time.Time{}, 5*time.Second, nil)
package store
