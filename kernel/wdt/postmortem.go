package wdt

import "watch/hal"

// Backup register layout of the postmortem record.
const (
	bkpMagic = 0
	bkpLow   = 1
	bkpHigh  = 2

	// BackupRegs is the number of backup registers the record occupies,
	// starting at index 0.
	BackupRegs = 3

	postmortemMagic = 0x5744
)

func (t *Tracker) remember(mask uint32) {
	if t.backup == nil || mask == t.stored {
		return
	}
	t.stored = mask
	storeStarving(t.backup, mask)
}

func storeStarving(b hal.Backup, mask uint32) {
	if b.Len() < BackupRegs {
		return
	}
	if mask == 0 {
		b.Store(bkpMagic, 0)
		return
	}
	b.Store(bkpLow, uint16(mask))
	b.Store(bkpHigh, uint16(mask>>16))
	b.Store(bkpMagic, postmortemMagic)
}

// Starving returns the participants (bit n for Handle n+1) that had not
// reported when the record in b was last written. After a watchdog reset
// these are the tasks that starved.
func Starving(b hal.Backup) uint32 {
	if b == nil || b.Len() < BackupRegs || b.Load(bkpMagic) != postmortemMagic {
		return 0
	}
	return uint32(b.Load(bkpLow)) | uint32(b.Load(bkpHigh))<<16
}

// StarvingNames resolves a Starving mask against the participants
// registered in this boot. Registration order is deterministic, so the
// handles of the previous boot match.
func (t *Tracker) StarvingNames(mask uint32) []string {
	return t.namesOf(mask)
}
