package keyboard

import (
	"fmt"
	"strconv"
)

// PaginationButtons returns up to three inline buttons (prev, current page, next)
// allowing the caller to paginate lists using a shared action prefix.
func PaginationButtons(action string, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	page = clampPage(page, totalPages)

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{
			Text:   "◀️ Prev",
			Unique: action,
			Data:   strconv.Itoa(page - 1),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   fmt.Sprintf("Page %d/%d", page, totalPages),
		Unique: action,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{
			Text:   "Next ▶️",
			Unique: action,
			Data:   strconv.Itoa(page + 1),
		})
	}

	return buttons
}

// Page returns the [start, end) bounds of page within total items and the page count.
// Out of range pages are clamped.
func Page(total, pageSize, page int) (start, end, pages int) {
	if pageSize < 1 {
		pageSize = 1
	}

	pages = (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	page = clampPage(page, pages)

	start = (page - 1) * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end, pages
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
