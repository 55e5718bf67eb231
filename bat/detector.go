package bat

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/outofforest/oledoc/blocks"
)

// Detector detects blocks claimed twice. Every walk over chains owns its own detector.
type Detector struct {
	claimed *roaring.Bitmap
}

// NewDetector returns new loop detector.
func NewDetector() *Detector {
	return &Detector{
		claimed: roaring.New(),
	}
}

// Claim marks the block as used. It fails if block has been already claimed.
func (d *Detector) Claim(address blocks.BlockAddress) error {
	if !address.IsRegular() {
		return blocks.Corruptf("claiming sentinel 0x%08x", uint32(address))
	}
	if !d.claimed.CheckedAdd(uint32(address)) {
		return blocks.Corruptf("block %d claimed twice", address)
	}
	return nil
}

// Claimed returns true if block has been claimed.
func (d *Detector) Claimed(address blocks.BlockAddress) bool {
	return d.claimed.Contains(uint32(address))
}

// Count returns the number of claimed blocks.
func (d *Detector) Count() uint64 {
	return d.claimed.GetCardinality()
}
