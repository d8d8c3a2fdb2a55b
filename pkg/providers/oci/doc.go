// Package oci implements the engine driver for Oracle Cloud Infrastructure.
//
// The Driver authenticates through a common.ConfigurationProvider and hands
// the engine one Session per region. A session bundles a Discoverer backed
// by the Resource Search service, which enumerates a compartment's contents
// with a single structured query, and a TypeRegistry describing how each
// supported resource type is deleted.
//
// Everything type-specific lives in the catalog: one TypeDescriptor per
// resource type, grouped by service family (compute, block storage,
// networking, object storage, load balancer, database, functions, container
// engine, file storage, artifacts). Descriptors declare their predecessor
// types so the engine tears a compartment down in dependency order, e.g.
// instances before subnets before VCNs.
//
// All service errors pass through mapError, which classifies HTTP responses
// into the engine's retry classes. A 404 is never a failure here: deletion
// targets absence, so "not found" means done.
//
// This is the only package in the module that imports the OCI SDK.
package oci
