package httpx

import (
	"net/http"

	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/service"
)

const (
	defaultMemberLimit = 10
	maxMemberLimit     = 1000
)

// CollectionHandlers serves read-only collection browsing.
type CollectionHandlers struct {
	Svc *service.TransferService
}

// List returns every collection's metadata.
func (h *CollectionHandlers) List(w http.ResponseWriter, r *http.Request) {
	colls, err := h.Svc.ListCollections(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if colls == nil {
		colls = []*model.Collection{}
	}
	WriteJSON(w, http.StatusOK, colls)
}

// Members returns one page of a collection's companies with the total count.
func (h *CollectionHandlers) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	limit, offset, err := ParseLimitOffset(r, defaultMemberLimit, maxMemberLimit)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	page, err := h.Svc.CollectionMembers(r.Context(), model.MemberListOptions{
		CollectionID: id,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}
