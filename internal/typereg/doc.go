// Package typereg merges per-module type fragments into the canonical type
// registry consumed by client codecs.
//
// A run starts from the override set, then folds every module's fragment
// in the configured order. Later modules replace earlier ones on a name
// collision; no module can replace an override. Fragments are loaded in
// parallel but folded sequentially, and the registry file is written only
// once every fragment has loaded and parsed.
package typereg
