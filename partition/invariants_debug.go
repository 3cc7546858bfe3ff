//go:build bisim_debug

package partition

import "fmt"

// checkInvariants walks the structures the stabilizer's main loop depends
// on and panics on the first violation found. It is compiled only under
// the bisim_debug build tag; release builds link invariants_release.go's
// no-op instead, so this never costs anything in a normal build.
func (p *Partition) checkInvariants(where string) {
	if len(p.statesInBlocks) != len(p.states) {
		panic(fmt.Sprintf("%s: statesInBlocks length %d != states length %d", where, len(p.statesInBlocks), len(p.states)))
	}
	for pos, s := range p.statesInBlocks {
		if p.states[s].pos != pos {
			panic(fmt.Sprintf("%s: state %d pos %d disagrees with statesInBlocks index %d", where, s, p.states[s].pos, pos))
		}
		if p.statePos[s] != pos {
			panic(fmt.Sprintf("%s: state %d statePos %d disagrees with statesInBlocks index %d", where, s, p.statePos[s], pos))
		}
	}

	for bi := range p.blocks {
		b := p.block(blockID(bi))
		if !(0 <= b.beginBottom && b.beginBottom <= b.endBottom && b.endBottom <= b.end) {
			panic(fmt.Sprintf("%s: block %d has malformed range [%d,%d,%d)", where, bi, b.beginBottom, b.endBottom, b.end))
		}
		for pos := b.beginBottom; pos < b.end; pos++ {
			s := p.statesInBlocks[pos]
			if p.states[s].block != blockID(bi) {
				panic(fmt.Sprintf("%s: state %d at pos %d claims block %d, expected %d", where, s, pos, p.states[s].block, bi))
			}
			wantBottom := pos < b.endBottom
			isBottom := p.isBottom(s)
			if wantBottom != isBottom {
				panic(fmt.Sprintf("%s: state %d at pos %d bottom-prefix membership %v disagrees with inertOut==0 (%v)", where, s, pos, wantBottom, isBottom))
			}
		}
	}

	for ci := range p.consts {
		c := p.cst(constID(ci))
		if !(0 <= c.begin && c.begin <= c.end && c.end <= len(p.statesInBlocks)) {
			panic(fmt.Sprintf("%s: constellation %d has malformed range [%d,%d)", where, ci, c.begin, c.end))
		}
	}

	for id := range p.blcs {
		bs := p.blc(blcID(id))
		if bs.deleted {
			continue
		}
		if !(0 <= bs.markBegin && bs.markBegin <= len(bs.members)) {
			panic(fmt.Sprintf("%s: BLC set %d has markBegin %d out of range for %d members", where, id, bs.markBegin, len(bs.members)))
		}
		for i, t := range bs.members {
			ti := p.trans(t)
			if ti.blc != blcID(id) || ti.blcPos != i {
				panic(fmt.Sprintf("%s: transition %d back-pointer (%d,%d) disagrees with BLC set %d position %d", where, t, ti.blc, ti.blcPos, id, i))
			}
			if p.state(ti.from).block != bs.block {
				panic(fmt.Sprintf("%s: transition %d source block disagrees with BLC set %d's owning block", where, t, id))
			}
		}
	}
}
