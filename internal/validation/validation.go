package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BearBump/DispatchBox/internal/models"
)

var dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// Error содержит все найденные проблемы заказа, а не только первую.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return strings.Join(e.Problems, "\n")
}

// Validate проверяет собранный заказ. pre: проблемы, найденные ещё при
// разборе разметки; они идут в начале итогового сообщения.
func Validate(o models.Order, pre ...string) error {
	problems := append([]string{}, pre...)

	if o.Matter == "" {
		problems = append(problems, "matter is not set")
	}
	if len(o.Points) == 0 {
		problems = append(problems, "order has no points")
	}
	if len(o.Points) > models.MaxPoints {
		problems = append(problems, fmt.Sprintf("order has %d points, max %d", len(o.Points), models.MaxPoints))
	}

	for i, p := range o.Points {
		if p.Address == "" {
			problems = append(problems, fmt.Sprintf("point[%d].address is not set", i))
		}
		if len(p.Phone) != 10 {
			problems = append(problems, fmt.Sprintf("point[%d].phone must consist of 10 digits", i))
		}
		if !dateTimeRe.MatchString(p.RequiredTimeStart) {
			problems = append(problems, fmt.Sprintf("point[%d].required_time_start must be in YYYY-MM-DD HH:MM:SS format", i))
		}
		if !dateTimeRe.MatchString(p.RequiredTime) {
			problems = append(problems, fmt.Sprintf("point[%d].required_time must be in YYYY-MM-DD HH:MM:SS format", i))
		}
		if p.Weight == 0 {
			problems = append(problems, fmt.Sprintf("point[%d].weight is not set", i))
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}
