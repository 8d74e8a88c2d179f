package list

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/benz9527/xlist/lib/infra"
)

// CheckInvariants audits the structural invariants of the list:
//
//  1. neighbor symmetry on both sides (X.next == Y implies Y.prev == X),
//  2. head/tail reference the unique boundary nodes,
//  3. Len matches forward reachability,
//  4. forward and backward walks enumerate the same elements reversed,
//  5. every slot is either fully removed or reachable from both ends.
//
// Violations are combined into a single error. The audit takes no locks;
// run it only at quiescence, otherwise in-flight post-commit repairs show
// up as transient violations.
func (l *XArenaList[T]) CheckInvariants() error {
	var merr error

	forward := make([]arenaLink, 0, len(l.base))
	head := l.headLink()
	if head != nullPtr {
		prevLink := nullPtr
		for cur := head; cur != nullPtr; {
			if cur == deletingMark {
				merr = multierr.Append(merr, infra.NewErrorStack("forward walk hit a deleting mark"))
				break
			}
			if len(forward) > len(l.base) {
				merr = multierr.Append(merr, infra.NewErrorStack("forward walk exceeds the arena capacity, cycle suspected"))
				break
			}
			word := l.toNode(cur).loadWord()
			if word == nullLink {
				merr = multierr.Append(merr, infra.NewErrorStack(fmt.Sprintf("slot %d reachable from head but fully removed", cur)))
				break
			}
			next, prev, _, _ := unpackLinks(word)
			if next == deletingMark {
				merr = multierr.Append(merr, infra.NewErrorStack(fmt.Sprintf("slot %d reachable from head but deleting", cur)))
				break
			}
			if prev != prevLink {
				merr = multierr.Append(merr, infra.NewErrorStack(
					fmt.Sprintf("slot %d prev link %d, want %d", cur, prev, prevLink)))
			}
			forward = append(forward, cur)
			prevLink = cur
			cur = next
		}
		if prevLink != l.tailLink() {
			merr = multierr.Append(merr, infra.NewErrorStack(
				fmt.Sprintf("forward walk ends at slot %d but tail is %d", prevLink, l.tailLink())))
		}
	} else if l.tailLink() != nullPtr {
		merr = multierr.Append(merr, infra.NewErrorStack("head is null but tail is not"))
	}

	backward := make([]arenaLink, 0, len(forward))
	if tail := l.tailLink(); tail != nullPtr {
		nextLink := nullPtr
		for cur := tail; cur != nullPtr && cur != deletingMark; {
			if len(backward) > len(l.base) {
				merr = multierr.Append(merr, infra.NewErrorStack("backward walk exceeds the arena capacity, cycle suspected"))
				break
			}
			word := l.toNode(cur).loadWord()
			if wordIsDeleting(word) {
				merr = multierr.Append(merr, infra.NewErrorStack(fmt.Sprintf("slot %d reachable from tail but not live", cur)))
				break
			}
			next, prev, _, _ := unpackLinks(word)
			if next != nextLink {
				merr = multierr.Append(merr, infra.NewErrorStack(
					fmt.Sprintf("slot %d next link %d, want %d", cur, next, nextLink)))
			}
			backward = append(backward, cur)
			nextLink = cur
			cur = prev
		}
	}

	if len(forward) != len(backward) {
		merr = multierr.Append(merr, infra.NewErrorStack(
			fmt.Sprintf("forward walk sees %d elements, backward walk sees %d", len(forward), len(backward))))
	} else {
		for i := range forward {
			if forward[i] != backward[len(backward)-1-i] {
				merr = multierr.Append(merr, infra.NewErrorStack(
					fmt.Sprintf("walks disagree at position %d: forward %d, backward %d",
						i, forward[i], backward[len(backward)-1-i])))
				break
			}
		}
	}

	if size := l.Len(); size != int64(len(forward)) {
		merr = multierr.Append(merr, infra.NewErrorStack(
			fmt.Sprintf("len counter %d, forward reachability %d", size, len(forward))))
	}

	reachable := make(map[arenaLink]struct{}, len(forward))
	for _, link := range forward {
		reachable[link] = struct{}{}
	}
	for i := range l.base {
		if l.nodeOf(&l.base[i]).IsNull() {
			continue
		}
		if _, ok := reachable[arenaLink(i)]; !ok {
			merr = multierr.Append(merr, infra.NewErrorStack(
				fmt.Sprintf("slot %d is linked but unreachable from head", i)))
		}
	}

	return merr
}
