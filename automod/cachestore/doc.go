// Automod component for caching arbitrary data (as JSON strings) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The engine uses this to cache per-guild settings, so that every chat message does not cost a database read.
package cachestore
