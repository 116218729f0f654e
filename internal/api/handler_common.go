package api

import "net/http"

func parsePaginationOrWriteInvalid(w http.ResponseWriter, r *http.Request) (Pagination, bool) {
	pg, err := ParsePagination(r)
	if err != nil {
		writeInvalidArgument(w, err.Error())
		return Pagination{}, false
	}
	return pg, true
}

func requireNumeroPathParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	numero, err := ParseNumero(PathParam(r, "numero"))
	if err != nil {
		writeInvalidArgument(w, err.Error())
		return 0, false
	}
	return numero, true
}
