package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelIsIdempotent(t *testing.T) {
	tree := New(context.Background())

	tree.Cancel()
	tree.Cancel()
	tree.Cancel()

	select {
	case <-tree.Root().Done():
	default:
		t.Fatal("root should be cancelled")
	}
}

func TestChildCancelledByRoot(t *testing.T) {
	tree := New(context.Background())
	child, cancelChild := tree.Child()
	defer cancelChild()

	require.NoError(t, child.Err())

	tree.Cancel()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child should observe root cancellation")
	}
	assert.ErrorIs(t, child.Err(), context.Canceled)
}

func TestChildCancelIndependentOfSiblings(t *testing.T) {
	tree := New(context.Background())
	child1, cancel1 := tree.Child()
	child2, cancel2 := tree.Child()
	defer cancel2()

	cancel1()

	select {
	case <-child1.Done():
	default:
		t.Fatal("child1 should be cancelled")
	}

	select {
	case <-child2.Done():
		t.Fatal("child2 should not be cancelled by a sibling")
	default:
	}
}
