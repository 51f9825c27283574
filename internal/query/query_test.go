package query

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/stretchr/testify/require"
)

type rec struct {
	Name string
	Size int64
}

func testRecords(n int) []rec {
	out := make([]rec, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rec{Name: fmt.Sprintf("pic-%03d", i), Size: int64(n - i)})
	}
	return out
}

var recSorters = map[string]Comparator[rec]{
	"name": func(a, b rec) int { return strings.Compare(a.Name, b.Name) },
	"size": func(a, b rec) int { return int(a.Size - b.Size) },
}

// 37 records / pageSize 10 -> 4 pages, last page holds 7
func TestPaginate_Windowing(t *testing.T) {
	records := testRecords(37)

	page, err := Paginate(records, 4, 10, "", "", recSorters)
	require.NoError(t, err)
	require.Equal(t, int64(37), page.Total)
	require.Equal(t, 4, page.Pages)
	require.Len(t, page.Records, 7)
}

func TestPaginate_SortDescend(t *testing.T) {
	records := testRecords(5)

	page, err := Paginate(records, 1, 3, "size", model.OrderDESC, recSorters)
	require.NoError(t, err)
	require.Equal(t, int64(5), page.Records[0].Size)
	require.Equal(t, int64(4), page.Records[1].Size)

	// source slice must stay untouched
	require.Equal(t, int64(5), records[0].Size)
}

func TestPaginate_SortAscendDefault(t *testing.T) {
	records := []rec{{Name: "b"}, {Name: "a"}, {Name: "c"}}

	page, err := Paginate(records, 1, 10, "name", "", recSorters)
	require.NoError(t, err)
	require.Equal(t, "a", page.Records[0].Name)
}

func TestPaginate_InvalidWindow(t *testing.T) {
	records := testRecords(3)

	for _, tc := range []struct{ current, pageSize int }{
		{0, 10}, {-1, 10}, {1, 0}, {1, -5},
	} {
		_, err := Paginate(records, tc.current, tc.pageSize, "", "", recSorters)
		require.ErrorIs(t, err, model.ErrIncorrectQuery)
	}
}

func TestPaginate_UnknownSortField(t *testing.T) {
	_, err := Paginate(testRecords(3), 1, 10, "color", "", recSorters)
	require.ErrorIs(t, err, model.ErrIncorrectSort)
}

func TestPaginate_UnknownSortOrder(t *testing.T) {
	_, err := Paginate(testRecords(3), 1, 10, "name", "sideways", recSorters)
	require.ErrorIs(t, err, model.ErrIncorrectSort)
}

// empty set is a valid page, not an error
func TestPaginate_Empty(t *testing.T) {
	page, err := Paginate([]rec{}, 1, 10, "", "", recSorters)
	require.NoError(t, err)
	require.Equal(t, int64(0), page.Total)
	require.Equal(t, 0, page.Pages)
	require.Empty(t, page.Records)
}

// page past the end is empty, not an error
func TestPaginate_PastEnd(t *testing.T) {
	page, err := Paginate(testRecords(5), 3, 10, "", "", recSorters)
	require.NoError(t, err)
	require.Empty(t, page.Records)
	require.Equal(t, int64(5), page.Total)
}

// a page number near the int limit would overflow (current-1)*pageSize;
// it must land on an empty window instead of panicking
func TestPaginate_HugePageNumber(t *testing.T) {
	page, err := Paginate(testRecords(5), 1<<61+1, 30, "", "", recSorters)
	require.NoError(t, err)
	require.Empty(t, page.Records)
	require.Equal(t, int64(5), page.Total)
}

func TestPaginate_HugePageSize(t *testing.T) {
	page, err := Paginate(testRecords(5), 1, 1<<62, "", "", recSorters)
	require.NoError(t, err)
	require.Len(t, page.Records, 5)
	require.Equal(t, 1, page.Pages)

	page, err = Paginate(testRecords(5), 2, 1<<62, "", "", recSorters)
	require.NoError(t, err)
	require.Empty(t, page.Records)
}

func TestNewPage(t *testing.T) {
	page, err := NewPage([]rec{{Name: "a"}}, 2, 10, 37)
	require.NoError(t, err)
	require.Equal(t, 4, page.Pages)
	require.Equal(t, int64(37), page.Total)

	_, err = NewPage([]rec{}, 0, 10, 0)
	require.ErrorIs(t, err, model.ErrIncorrectQuery)
}

func TestNewPage_NilRecords(t *testing.T) {
	page, err := NewPage[rec](nil, 1, 10, 0)
	require.NoError(t, err)
	require.NotNil(t, page.Records)
	require.Empty(t, page.Records)
}
