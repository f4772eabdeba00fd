// Package cache holds the two local tiers of the asset cache: an unbounded
// in-process Memory map and a flat Disk directory of raw bytes. Keys are
// storage paths inside the remote blob namespace; DiskFileName turns them into
// collision-free file names so the disk tier never needs subdirectories.
// Both tiers are best-effort and never surface errors to readers, the asset
// service treats every failure here as a miss and moves on to the next tier.
package cache
