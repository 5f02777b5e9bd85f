package tree

import (
	"testing"

	"github.com/treelock/treelock/testutil"
)

func TestTree_BuildAndEnumerate(t *testing.T) {
	tr := NewTree()
	docs, err := tr.AddFolder(tr.Root(), "docs")
	testutil.RequireNoError(t, err)
	_, err = tr.AddFile(docs, "readme.txt")
	testutil.RequireNoError(t, err)
	_, err = tr.AddFile(docs, "changes.txt")
	testutil.RequireNoError(t, err)

	children := docs.Children()
	testutil.RequireNotNil(t, children)
	testutil.AssertLen(t, children, 2)
	testutil.AssertEqual(t, "changes.txt", children[0].Name())
	testutil.AssertEqual(t, "readme.txt", children[1].Name())
}

func TestTree_DuplicateNameRejected(t *testing.T) {
	tr := NewTree()
	docs, err := tr.AddFolder(tr.Root(), "docs")
	testutil.RequireNoError(t, err)
	_, err = tr.AddFile(docs, "readme.txt")
	testutil.RequireNoError(t, err)

	_, err = tr.AddFile(docs, "readme.txt")
	testutil.AssertErrorIs(t, err, ErrDuplicateName)
	_, err = tr.AddFolder(docs, "readme.txt")
	testutil.AssertErrorIs(t, err, ErrDuplicateName)
}

func TestTree_IdentitySurvivesMove(t *testing.T) {
	tr := NewTree()
	docs, err := tr.AddFolder(tr.Root(), "docs")
	testutil.RequireNoError(t, err)
	archive, err := tr.AddFolder(tr.Root(), "archive")
	testutil.RequireNoError(t, err)
	file, err := tr.AddFile(docs, "readme.txt")
	testutil.RequireNoError(t, err)

	id := file.ID()
	testutil.RequireNoError(t, tr.Move(file, archive))

	testutil.AssertEqual(t, id, file.ID())
	testutil.AssertLen(t, docs.Children(), 0)
	children := archive.Children()
	testutil.AssertLen(t, children, 1)
	testutil.AssertEqual(t, id, children[0].ID())
}

func TestTree_MoveGuards(t *testing.T) {
	tr := NewTree()
	docs, err := tr.AddFolder(tr.Root(), "docs")
	testutil.RequireNoError(t, err)
	sub, err := tr.AddFolder(docs, "sub")
	testutil.RequireNoError(t, err)

	testutil.AssertErrorIs(t, tr.Move(docs, sub), ErrMoveIntoSelf)
	testutil.AssertErrorIs(t, tr.Move(docs, docs), ErrMoveIntoSelf)
	testutil.AssertErrorIs(t, tr.Move(tr.Root(), docs), ErrMoveRoot)

	other := NewTree()
	testutil.AssertErrorIs(t, other.Move(docs, other.Root()), ErrNotAttached)
}

func TestTree_ChildAddedFires(t *testing.T) {
	tr := NewTree()
	type event struct {
		child  string
		parent Container
	}
	var events []event
	tr.OnChildAdded(func(child Resource, parent Container) {
		events = append(events, event{child: child.Name(), parent: parent})
	})

	docs, err := tr.AddFolder(tr.Root(), "docs")
	testutil.RequireNoError(t, err)
	file, err := tr.AddFile(docs, "readme.txt")
	testutil.RequireNoError(t, err)

	archive, err := tr.AddFolder(tr.Root(), "archive")
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, tr.Move(file, archive))

	testutil.AssertLen(t, events, 4)
	testutil.AssertEqual(t, "docs", events[0].child)
	testutil.AssertEqual(t, Container(tr.Root()), events[0].parent)
	testutil.AssertEqual(t, "readme.txt", events[1].child)
	testutil.AssertEqual(t, Container(docs), events[1].parent)
	// The move reports the file arriving at its destination.
	testutil.AssertEqual(t, "readme.txt", events[3].child)
	testutil.AssertEqual(t, Container(archive), events[3].parent)
}
