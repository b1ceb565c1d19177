package http

import (
	"net/http"

	"agrogestion/internal/core"
	"agrogestion/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, u core.User) {
	q, err := ParseExpenseQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	list, ok := s.deps.Expenses.Open(r.Context(), u.ID)
	if !ok {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	items := core.Filter(list.Expenses(), q)
	NewJSONResponse().Body(expenseListJSON{
		Expenses: toExpenseList(items),
		Count:    len(items),
		Total:    core.Sum(items).String(),
	}).Write(w)
}

// handleCreateExpense writes through even when the preliminary load fails;
// the load only decides whether the write is logged as an update.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, u core.User) {
	var in expenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, err := in.build(u.ID, s.deps.Now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	list, _ := s.deps.Expenses.Open(r.Context(), u.ID)
	if !s.deps.Expenses.Save(r.Context(), list, e) {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.NewFields().WithOperation(log.OpCreate).WithExpense(e.ID, e.Amount.Cents, string(e.Category)).ToSlice()...)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		Body(toExpenseJSON(e)).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, u core.User) {
	id := r.PathValue("id")
	var in expenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, err := in.build(u.ID, s.deps.Now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	list, ok := s.deps.Expenses.Open(r.Context(), u.ID)
	if !ok {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	if _, found := list.Find(id); !found {
		NotFoundError("expense not found").Write(w)
		return
	}
	e.ID = id
	if !s.deps.Expenses.Save(r.Context(), list, e) {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	NewJSONResponse().Body(toExpenseJSON(e)).Write(w)
}

// handleDeleteExpense only deletes ids found in the caller's own set, since
// the store deletes by id alone.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, u core.User) {
	id := r.PathValue("id")
	list, ok := s.deps.Expenses.Open(r.Context(), u.ID)
	if !ok {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	if _, found := list.Find(id); !found {
		NotFoundError("expense not found").Write(w)
		return
	}
	if !s.deps.Expenses.Remove(r.Context(), list, id) {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
