package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// BuildOrderConfirmationBody renders the HTML body of an order confirmation.
// Order lines are matched to cart lines by meal id for names and prices.
func BuildOrderConfirmationBody(order cart.Order, lines []cart.CartItem) string {
	byMeal := make(map[string]cart.CartItem, len(lines))
	for _, line := range lines {
		byMeal[line.MealID] = line
	}

	var rows strings.Builder
	for _, item := range order.Items {
		line := byMeal[item.MealID]
		name := line.Name
		if name == "" {
			name = item.MealID
		}
		price, lineTotal := "-", "-"
		if line.Price.Valid {
			price = formatMoney(line.Price.Decimal)
			lineTotal = formatMoney(line.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		note := ""
		if item.Note != "" {
			note = fmt.Sprintf(`<br><span style="font-size: 12px; color: #888;">%s</span>`, html.EscapeString(item.Note))
		}
		fmt.Fprintf(&rows, `<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(name), note, item.Quantity, price, lineTotal)
	}

	discount := ""
	if order.Discount.IsPositive() {
		discount = fmt.Sprintf(`<p style="margin: 0; color: #2e7d32;">Discount (%s): -%s</p>`,
			html.EscapeString(order.CouponCode), formatMoney(order.Discount))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #e65100; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thanks for your order!</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 0 0 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">#%d</p>
			<p style="margin: 5px 0 0 0; font-size: 14px; color: #666;">Payment: %s</p>
		</div>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Meal</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<p style="margin: 0;">Subtotal: %s</p>
			%s
			<p style="margin: 10px 0 0 0; font-size: 22px; font-weight: bold;">Total: %s</p>
		</div>

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">This is an automated message.</p>
	</div>
</body>
</html>`, order.ID, paymentLabel(order.PaymentMethod), rows.String(),
		formatMoney(order.Subtotal), discount, formatMoney(order.Total))
}

func paymentLabel(p cart.PaymentMethod) string {
	switch p {
	case cart.PaymentCreditCard:
		return "Credit card"
	case cart.PaymentCash:
		return "Cash on delivery"
	case cart.PaymentPOS:
		return "Card on delivery"
	}
	return string(p)
}

// formatMoney renders two decimals with comma thousands separators.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var out strings.Builder
	remainder := len(whole) % 3
	if remainder > 0 {
		out.WriteString(whole[:remainder])
	}
	for i := remainder; i < len(whole); i += 3 {
		if out.Len() > 0 {
			out.WriteString(",")
		}
		out.WriteString(whole[i : i+3])
	}
	return sign + out.String() + "." + frac
}
