package order

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// 超过该规模的虚拟银行多取一位hash参与种子计算
const wideBankSize = 16

type member struct {
	addr string
	rank int
}

// Assign computes the final rank of every bank member for one coordination
// round. The result is a dense permutation of 1..N determined only by the
// bank snapshot, nerveTxHash and exclusions. Bank members listed in
// exclusions (manager change adds/removes) skip the rotation and take the
// last ranks in address order.
func Assign(bank *VirtualBank, nerveTxHash string, exclusions []string) (map[string]int, error) {
	if bank == nil || bank.Size() == 0 {
		return nil, def.ErrInvalidBank.More("empty bank")
	}
	seed, err := seedOf(nerveTxHash, bank.Size())
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(exclusions))
	for _, addr := range exclusions {
		excluded[normalize(addr)] = true
	}

	var rotation, tail []member
	it := bank.members.Iterator()
	for it.Next() {
		m := member{addr: it.Key().(string), rank: it.Value().(int)}
		if excluded[m.addr] {
			tail = append(tail, m)
			continue
		}
		rotation = append(rotation, m)
	}

	// 先按初始排序归一化为1..m，排序相同时按地址
	sort.Slice(rotation, func(i, j int) bool {
		if rotation[i].rank != rotation[j].rank {
			return rotation[i].rank < rotation[j].rank
		}
		return rotation[i].addr < rotation[j].addr
	})
	result := make(map[string]int, bank.Size())
	size := len(rotation)
	if size > 0 {
		mod := seed%size + 1
		for i := range rotation {
			rotation[i].rank = (i+mod)%size + 1
		}
		sort.Slice(rotation, func(i, j int) bool {
			return rotation[i].rank < rotation[j].rank
		})
		for i, m := range rotation {
			result[m.addr] = i + 1
		}
	}

	// tail already in address order
	for i, m := range tail {
		result[m.addr] = size + i + 1
	}
	return result, nil
}

// RankOf is a shortcut returning only the rank of addr
func RankOf(bank *VirtualBank, nerveTxHash string, exclusions []string, addr string) (int, error) {
	ranks, err := Assign(bank, nerveTxHash, exclusions)
	if err != nil {
		return 0, err
	}
	rank, ok := ranks[normalize(addr)]
	if !ok {
		return 0, def.ErrNotMember.More("%s", addr)
	}
	return rank, nil
}

func seedOf(nerveTxHash string, bankSize int) (int, error) {
	hash := strings.TrimPrefix(strings.ToLower(nerveTxHash), "0x")
	need := 1
	if bankSize > wideBankSize {
		need = 2
	}
	if len(hash) < need {
		return 0, def.ErrParameter.More("nerve tx hash too short: %s", nerveTxHash)
	}
	seed := 0
	for i := 0; i < need; i++ {
		v, err := strconv.ParseUint(hash[i:i+1], 16, 8)
		if err != nil {
			return 0, def.ErrParameter.More("nerve tx hash not hex: %s", nerveTxHash)
		}
		seed += int(v) + 1
	}
	return seed, nil
}
