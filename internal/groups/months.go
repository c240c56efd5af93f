package groups

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthName returns the Portuguese name of a zero-based month index.
func MonthName(i int) string {
	if i < 0 || i >= len(monthNames) {
		return ""
	}
	return monthNames[i]
}
