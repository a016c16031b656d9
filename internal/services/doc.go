// Package services defines the cross-cutting helpers shared by the pipeline,
// workflow and API layers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, asset IDs, stage names and
//     correlation identifiers for logging.
//   - Error markers plus the Wrap helper so failures carry stage context and
//     classify into stable kinds (engine_load, encode, upload, ...).
package services
