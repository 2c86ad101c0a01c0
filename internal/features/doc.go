// Package features turns garment photographs into descriptors.
//
// A descriptor concatenates a visual embedding produced by a Backbone with a
// colour signature built from RGB and HSV histograms. Both halves are scaled
// to unit length and weighted (0.7 embedding, 0.3 colour by default) so that
// the colour distribution nudges the cosine score without dominating it.
//
// Backbones are constructed once per process and are immutable afterwards.
// The in-process GridBackbone needs no network access; RemoteBackbone calls
// a multimodal embedding service and caches results by image digest.
//
// GridBackbone is hand-built from pixel statistics and gradient histograms,
// not a pretrained network. It separates garments mostly by colour and
// coarse layout, so similar garments of the same colour can score above the
// threshold. Use the remote backbone when recognition quality matters.
//
// Outfits (composite items) can be extracted region by region: the
// foreground is split into upper and lower garment bands whose descriptors
// are averaged with the whole-image descriptor.
package features
