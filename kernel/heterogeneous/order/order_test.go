package order

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

func fiveBank(t *testing.T) *VirtualBank {
	bank, err := NewVirtualBank(map[string]int{
		"0xA": 1, "0xB": 2, "0xC": 3, "0xD": 4, "0xE": 5,
	})
	require.NoError(t, err)
	return bank
}

func TestNewVirtualBank(t *testing.T) {
	cases := []struct {
		name    string
		members map[string]int
	}{
		{"empty", map[string]int{}},
		{"blank address", map[string]int{" ": 1}},
		{"zero rank", map[string]int{"0xa": 0}},
		{"case duplicate", map[string]int{"0xab": 1, "0xAB": 2}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewVirtualBank(c.members)
			assert.True(t, errors.Is(err, def.ErrInvalidBank))
		})
	}

	bank := fiveBank(t)
	assert.Equal(t, 5, bank.Size())
	assert.Equal(t, []string{"0xa", "0xb", "0xc", "0xd", "0xe"}, bank.Addresses())
	rank, ok := bank.Rank("0XD")
	assert.True(t, ok)
	assert.Equal(t, 4, rank)
}

func TestAssignRotation(t *testing.T) {
	bank := fiveBank(t)

	// seed=1, mod=2
	ranks, err := Assign(bank, "0x0f", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0xa": 3, "0xb": 4, "0xc": 5, "0xd": 1, "0xe": 2}, ranks)

	// seed=4, mod=5 rotates a full circle
	ranks, err = Assign(bank, "3f", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0xa": 1, "0xb": 2, "0xc": 3, "0xd": 4, "0xe": 5}, ranks)
}

func TestAssignDeterministicPermutation(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, size := range []int{1, 2, 5, 16, 17, 30} {
		members := make(map[string]int, size)
		for i := 0; i < size; i++ {
			// 初始排序允许重复和空洞
			members[fmt.Sprintf("0x%040x", rnd.Int63())] = rnd.Intn(size) + 1
		}
		bank, err := NewVirtualBank(members)
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			hash := fmt.Sprintf("%064x", rnd.Uint64())
			first, err := Assign(bank, hash, nil)
			require.NoError(t, err)
			second, err := Assign(bank, hash, nil)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			seen := make(map[int]bool, size)
			for _, r := range first {
				assert.True(t, r >= 1 && r <= size, "rank %d out of range", r)
				assert.False(t, seen[r], "duplicate rank %d", r)
				seen[r] = true
			}
			assert.Len(t, seen, size)
		}
	}
}

func TestAssignWideBankUsesSecondNibble(t *testing.T) {
	members := make(map[string]int, 17)
	for i := 0; i < 17; i++ {
		members[fmt.Sprintf("0x%02d", i)] = i + 1
	}
	bank, err := NewVirtualBank(members)
	require.NoError(t, err)

	// seed only differs by the second nibble
	r1, err := Assign(bank, "00", nil)
	require.NoError(t, err)
	r2, err := Assign(bank, "01", nil)
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)
}

func TestAssignExclusions(t *testing.T) {
	bank := fiveBank(t)
	ranks, err := Assign(bank, "0x0f", []string{"0xE", "0xB", "0xNotMember"})
	require.NoError(t, err)

	// rotation over a,c,d with seed=1, mod=1%3+1=2
	assert.Equal(t, 1, ranks["0xc"])
	assert.Equal(t, 2, ranks["0xd"])
	assert.Equal(t, 3, ranks["0xa"])
	// excluded members take the tail in address order
	assert.Equal(t, 4, ranks["0xb"])
	assert.Equal(t, 5, ranks["0xe"])
	assert.Len(t, ranks, 5)
}

func TestRankOf(t *testing.T) {
	bank := fiveBank(t)
	rank, err := RankOf(bank, "0x0f", nil, "0xD")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	_, err = RankOf(bank, "0x0f", nil, "0xF")
	assert.True(t, errors.Is(err, def.ErrNotMember))

	_, err = Assign(bank, "zz", nil)
	assert.True(t, errors.Is(err, def.ErrParameter))
}
